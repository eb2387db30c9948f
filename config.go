/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Seednode/secretsanta/internal/auth"
	"github.com/Seednode/secretsanta/internal/hint"
	"github.com/Seednode/secretsanta/internal/registry"
	"github.com/Seednode/secretsanta/internal/state"
	"github.com/Seednode/secretsanta/internal/storage"
)

type Config struct {
	bind           string
	port           int
	prefix         string
	profile        bool
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	participants []string
	masterKey    string
	namespace    string

	storage       string
	stateDir      string
	sqlitePath    string
	postgresDSN   string
	redisAddr     string
	redisPassword string
	redisDB       int
	minioEndpoint string
	minioAccess   string
	minioSecret   string
	minioBucket   string
	minioUseSSL   bool

	geminiAPIKey string
	geminiModel  string
	hintLanguage string
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.masterKey == "" {
		return errors.New("--master-key must not be empty")
	}

	kind, err := storage.ParseKind(c.storage)
	if err != nil {
		return err
	}

	switch kind {
	case storage.KindFile:
		if c.stateDir == "" {
			return errors.New("--state-dir is required for file storage")
		}
	case storage.KindSQLite:
		if c.sqlitePath == "" {
			return errors.New("--sqlite-path is required for sqlite storage")
		}
	case storage.KindPostgres:
		if c.postgresDSN == "" {
			return errors.New("--postgres-dsn is required for postgres storage")
		}
	case storage.KindRedis:
		if c.redisAddr == "" {
			return errors.New("--redis-addr is required for redis storage")
		}
	case storage.KindMinio:
		if c.minioEndpoint == "" || c.minioBucket == "" {
			return errors.New("--minio-endpoint and --minio-bucket are required for minio storage")
		}
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SECRETSANTA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "secretsanta",
		Short:         "A family secret santa draw, with wishlists and a hint-giving reindeer.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SECRETSANTA_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: SECRETSANTA_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: SECRETSANTA_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: SECRETSANTA_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle login sessions are dropped (env: SECRETSANTA_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: SECRETSANTA_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: SECRETSANTA_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: SECRETSANTA_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: SECRETSANTA_VERSION)")

	fs.StringSliceVar(&cfg.participants, "participants", registry.FamilyMembers, "participant names used when no state is stored (env: SECRETSANTA_PARTICIPANTS)")
	fs.StringVar(&cfg.masterKey, "master-key", auth.DefaultMasterKey, "family key that unlocks password recovery (env: SECRETSANTA_MASTER_KEY)")
	fs.StringVar(&cfg.namespace, "namespace", state.DefaultNamespace, "key the state is stored under (env: SECRETSANTA_NAMESPACE)")

	fs.StringVar(&cfg.storage, "storage", string(storage.KindFile), "storage backend: file, sqlite, postgres, redis, minio (env: SECRETSANTA_STORAGE)")
	fs.StringVar(&cfg.stateDir, "state-dir", "data", "directory for file storage (env: SECRETSANTA_STATE_DIR)")
	fs.StringVar(&cfg.sqlitePath, "sqlite-path", "data/secretsanta.db", "database path for sqlite storage (env: SECRETSANTA_SQLITE_PATH)")
	fs.StringVar(&cfg.postgresDSN, "postgres-dsn", "", "connection string for postgres storage (env: SECRETSANTA_POSTGRES_DSN)")
	fs.StringVar(&cfg.redisAddr, "redis-addr", "localhost:6379", "address for redis storage (env: SECRETSANTA_REDIS_ADDR)")
	fs.StringVar(&cfg.redisPassword, "redis-password", "", "password for redis storage (env: SECRETSANTA_REDIS_PASSWORD)")
	fs.IntVar(&cfg.redisDB, "redis-db", 0, "database number for redis storage (env: SECRETSANTA_REDIS_DB)")
	fs.StringVar(&cfg.minioEndpoint, "minio-endpoint", "", "endpoint for minio storage (env: SECRETSANTA_MINIO_ENDPOINT)")
	fs.StringVar(&cfg.minioAccess, "minio-access-key", "", "access key for minio storage (env: SECRETSANTA_MINIO_ACCESS_KEY)")
	fs.StringVar(&cfg.minioSecret, "minio-secret-key", "", "secret key for minio storage (env: SECRETSANTA_MINIO_SECRET_KEY)")
	fs.StringVar(&cfg.minioBucket, "minio-bucket", "secretsanta", "bucket for minio storage (env: SECRETSANTA_MINIO_BUCKET)")
	fs.BoolVar(&cfg.minioUseSSL, "minio-use-ssl", false, "use tls for minio storage (env: SECRETSANTA_MINIO_USE_SSL)")

	fs.StringVar(&cfg.geminiAPIKey, "gemini-api-key", "", "gemini api key; hints fall back to a canned reply without one (env: SECRETSANTA_GEMINI_API_KEY)")
	fs.StringVar(&cfg.geminiModel, "gemini-model", hint.DefaultModel, "gemini model used for hints (env: SECRETSANTA_GEMINI_MODEL)")
	fs.StringVar(&cfg.hintLanguage, "hint-language", hint.DefaultLanguage, "language hints are written in (env: SECRETSANTA_HINT_LANGUAGE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, envValue(v, f))
		}
	})

	cmd.AddCommand(newShareCmd(cfg), newImportCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("secretsanta v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// envValue renders a viper value the way pflag expects to parse it back.
func envValue(v *viper.Viper, f *pflag.Flag) string {
	if f.Value.Type() == "stringSlice" {
		return strings.Join(v.GetStringSlice(f.Name), ",")
	}

	return fmt.Sprintf("%v", v.Get(f.Name))
}
