//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/storage/postgres"
)

var dsn string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: tc.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "postgres",
				"POSTGRES_PASSWORD": "password",
				"POSTGRES_DB":       "secretsanta_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		panic(err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		panic(err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		panic(err)
	}
	dsn = fmt.Sprintf("postgres://postgres:password@%s:%s/secretsanta_test?sslmode=disable", host, port.Port())

	code := m.Run()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestStore_Postgres(t *testing.T) {
	ctx := context.Background()

	s, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Read(ctx, "ns")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Write(ctx, "ns", []byte(`{"users":[]}`)))
	require.NoError(t, s.Write(ctx, "ns", []byte(`{"users":[],"isDrawDone":true}`)))

	got, err := s.Read(ctx, "ns")
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[],"isDrawDone":true}`, string(got))

	// migrations are idempotent
	again, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}
