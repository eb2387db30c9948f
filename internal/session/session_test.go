package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/secretsanta/internal/auth"
	"github.com/Seednode/secretsanta/internal/model"
)

type directory map[string]model.Participant

func (d directory) Participant(id string) (model.Participant, bool) {
	p, ok := d[id]
	return p, ok
}

func (d directory) ClaimPassword(ctx context.Context, id, password string) error {
	if d[id].HasPassword() {
		return model.ErrPasswordSet
	}

	return d.SetPassword(ctx, id, password)
}

func (d directory) SetPassword(_ context.Context, id, password string) error {
	p := d[id]
	p.Password = password
	d[id] = p

	return nil
}

func newManager(t *testing.T) *Manager {
	t.Helper()

	dir := directory{"erik": {ID: "erik", Name: "Erik", Password: "abc"}}

	return NewManager(context.Background(), dir, "", 0)
}

func TestFromRequest_SetsCookie(t *testing.T) {
	m := newManager(t)

	w := httptest.NewRecorder()
	s := m.FromRequest(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, s)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, s.ID, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	w = httptest.NewRecorder()

	again := m.FromRequest(w, r)
	assert.Same(t, s, again)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, 1, m.Len())
}

func TestFromRequest_SecureCookie(t *testing.T) {
	m := newManager(t)

	w := httptest.NewRecorder()
	m.FromRequest(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Result().Cookies(), 1)
	assert.False(t, w.Result().Cookies()[0].Secure)

	m.Secure = true

	w = httptest.NewRecorder()
	m.FromRequest(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, w.Result().Cookies(), 1)
	assert.True(t, w.Result().Cookies()[0].Secure)
}

func TestFromRequest_UnknownCookie(t *testing.T) {
	m := newManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	w := httptest.NewRecorder()

	s := m.FromRequest(w, r)
	assert.NotEqual(t, "stale", s.ID)
	require.Len(t, w.Result().Cookies(), 1)
}

func TestSession_LoginIsPerBrowser(t *testing.T) {
	m := newManager(t)

	a := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	b := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	a.Do(func(s *auth.Session) {
		s.Select("erik")
		s.Submit(context.Background(), "abc")
	})

	user, ok := a.User()
	require.True(t, ok)
	assert.Equal(t, "erik", user)

	_, ok = b.User()
	assert.False(t, ok)

	flow, user := a.View()
	assert.Equal(t, auth.StepSelect, flow.Step)
	assert.Equal(t, "erik", user)
}

func TestSession_Notice(t *testing.T) {
	m := newManager(t)
	s := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, s.TakeNotice())

	s.SetNotice("saved")
	assert.Equal(t, "saved", s.TakeNotice())
	assert.Empty(t, s.TakeNotice())
}

func TestSession_Pending(t *testing.T) {
	m := newManager(t)
	s := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, s.Pending())

	s.SetPending("token")
	assert.Equal(t, "token", s.Pending())

	s.SetPending("")
	assert.Empty(t, s.Pending())
}

func TestReap(t *testing.T) {
	m := newManager(t)

	old := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	old.mu.Lock()
	old.lastActive = time.Now().Add(-time.Hour)
	old.mu.Unlock()

	fresh := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	removed := m.reap(time.Now().Add(-time.Minute))
	assert.Equal(t, 1, removed)

	_, ok := m.Get(old.ID)
	assert.False(t, ok)

	_, ok = m.Get(fresh.ID)
	assert.True(t, ok)
}

func TestReaperLoop_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(ctx, directory{}, "", 20*time.Millisecond)

	s := m.FromRequest(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	s.mu.Lock()
	s.lastActive = time.Now().Add(-time.Hour)
	s.mu.Unlock()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
}
