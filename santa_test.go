package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/secretsanta/internal/hint"
	"github.com/Seednode/secretsanta/internal/registry"
	"github.com/Seednode/secretsanta/internal/share"
	"github.com/Seednode/secretsanta/internal/state"
	"github.com/Seednode/secretsanta/internal/storage/file"
)

type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)

	return f.reply, nil
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.prompts) == 0 {
		return ""
	}

	return f.prompts[len(f.prompts)-1]
}

type testApp struct {
	store *state.Store
	srv   *httptest.Server
}

func newTestApp(t *testing.T, gen hint.Generator) *testApp {
	t.Helper()

	return newTestAppWithConfig(t, &Config{masterKey: "NAVIDAD"}, gen)
}

func newTestAppWithConfig(t *testing.T, cfg *Config, gen hint.Generator) *testApp {
	t.Helper()

	backend, err := file.NewWithFs(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)

	store := state.New(backend, "", []string{"Erik", "Luis", "Nerea"})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errs := make(chan error, 64)
	go drainErrors(ctx, errs)

	s := newSanta(ctx, cfg, store, hint.New(gen, ""))

	srv := httptest.NewServer(newRouter(cfg, s, errs))
	t.Cleanup(srv.Close)

	return &testApp{store: store, srv: srv}
}

func (a *testApp) client(t *testing.T, follow bool) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	c := &http.Client{Jar: jar}
	if !follow {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return c
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(b)
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) string {
	t.Helper()

	resp, err := c.PostForm(a.srv.URL+path, form)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	return body(t, resp)
}

func (a *testApp) login(t *testing.T, c *http.Client, id, password string) string {
	t.Helper()

	a.post(t, c, "/login/select", url.Values{"id": {id}})

	return a.post(t, c, "/login/submit", url.Values{"input": {password}})
}

func TestIndex_ShowsParticipants(t *testing.T) {
	app := newTestApp(t, nil)

	resp, err := app.client(t, true).Get(app.srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Cookies())

	page := body(t, resp)
	assert.Contains(t, page, "Who are you?")
	for _, name := range []string{"Erik", "Luis", "Nerea"} {
		assert.Contains(t, page, name)
	}
}

func TestLogin_CreatePassword(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	page := app.post(t, c, "/login/select", url.Values{"id": {"erik"}})
	assert.Contains(t, page, "Pick a password")

	page = app.post(t, c, "/login/submit", url.Values{"input": {"ab"}})
	assert.Contains(t, page, "password must be at least 3 characters")

	page = app.post(t, c, "/login/submit", url.Values{"input": {"abc"}})
	assert.Contains(t, page, "Hello, <strong>Erik</strong>")
	assert.Contains(t, page, "Draw names")

	erik, _ := app.store.Participant("erik")
	assert.Equal(t, "abc", erik.Password)

	page = app.post(t, c, "/logout", nil)
	assert.Contains(t, page, "Who are you?")

	page = app.post(t, c, "/login/select", url.Values{"id": {"erik"}})
	assert.Contains(t, page, "Enter your password")

	page = app.post(t, c, "/login/submit", url.Values{"input": {"wrong"}})
	assert.Contains(t, page, "incorrect password")

	page = app.post(t, c, "/login/forgot", nil)
	assert.Contains(t, page, "master key")

	page = app.post(t, c, "/login/submit", url.Values{"input": {"navidad"}})
	assert.Contains(t, page, "Choose a new password")

	page = app.post(t, c, "/login/submit", url.Values{"input": {"nueva"}})
	assert.Contains(t, page, "Hello, <strong>Erik</strong>")

	erik, _ = app.store.Participant("erik")
	assert.Equal(t, "nueva", erik.Password)
}

func TestLogin_Back(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	app.post(t, c, "/login/select", url.Values{"id": {"luis"}})
	page := app.post(t, c, "/login/back", nil)
	assert.Contains(t, page, "Who are you?")
}

func TestDraw(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	// Anonymous callers cannot draw.
	app.post(t, c, "/draw", nil)
	assert.False(t, app.store.Snapshot().IsDrawDone)

	app.login(t, c, "erik", "abc")

	page := app.post(t, c, "/draw", nil)
	assert.Contains(t, page, "The draw is done!")
	assert.Contains(t, page, "You are giving a gift to")
	assert.NotContains(t, page, "Draw names")

	first := app.store.Snapshot()
	require.True(t, first.IsDrawDone)

	page = app.post(t, c, "/draw", nil)
	assert.Contains(t, page, "The draw has already been done.")
	assert.Equal(t, first, app.store.Snapshot())
}

func TestWishlist(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	app.post(t, c, "/wishlist", url.Values{"wishlist": {"ignored"}})
	luis, _ := app.store.Participant("luis")
	assert.Empty(t, luis.Wishlist)

	app.login(t, c, "luis", "abc")

	page := app.post(t, c, "/wishlist", url.Values{"wishlist": {"socks & a book"}})
	assert.Contains(t, page, "Wishlist saved.")
	assert.Contains(t, page, "socks &amp; a book")

	luis, _ = app.store.Participant("luis")
	assert.Equal(t, "socks & a book", luis.Wishlist)
}

func TestShareToken_ConfirmReplacesState(t *testing.T) {
	app := newTestApp(t, nil)

	shared := registry.Default([]string{"Ana", "Bea"})
	shared.Users[0].Wishlist = "turrón"
	link, err := share.URL(app.srv.URL+"/", shared)
	require.NoError(t, err)

	c := app.client(t, false)
	before := app.store.Snapshot()

	resp, err := c.Get(link)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, before, app.store.Snapshot())

	resp, err = c.Get(app.srv.URL + "/")
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "Load shared link")

	// Nothing to lose yet, so no login is needed.
	resp, err = c.PostForm(app.srv.URL+"/import", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, shared, app.store.Snapshot())

	resp, err = c.Get(app.srv.URL + "/")
	require.NoError(t, err)
	page = body(t, resp)
	assert.Contains(t, page, noticeImported)
	assert.Contains(t, page, "Ana")
	assert.NotContains(t, page, "Erik")
	assert.NotContains(t, page, "Load shared link")
}

func TestShareToken_AnonymousCannotUndoDraw(t *testing.T) {
	app := newTestApp(t, nil)

	_, err := app.store.Draw(context.Background(), nil)
	require.NoError(t, err)
	drawn := app.store.Snapshot()

	link, err := share.URL(app.srv.URL+"/", registry.Default([]string{"Erik", "Luis", "Nerea"}))
	require.NoError(t, err)

	// A bare GET, as an embedded image would send.
	resp, err := http.Get(link)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, drawn, app.store.Snapshot())

	c := app.client(t, true)

	resp, err = c.Get(link)
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "Log in first")
	assert.NotContains(t, page, "Load shared link")

	page = app.post(t, c, "/import", nil)
	assert.Contains(t, page, noticeImportLogin)
	assert.Equal(t, drawn, app.store.Snapshot())
}

func TestShareToken_RollbackNeedsConfirmation(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	app.login(t, c, "erik", "abc")
	app.post(t, c, "/draw", nil)
	drawn := app.store.Snapshot()
	require.True(t, drawn.IsDrawDone)

	undrawn := drawn.Clone()
	undrawn.IsDrawDone = false
	for i := range undrawn.Users {
		undrawn.Users[i].AssignedTo = ""
	}
	link, err := share.URL(app.srv.URL+"/", undrawn)
	require.NoError(t, err)

	resp, err := c.Get(link)
	require.NoError(t, err)
	page := body(t, resp)
	assert.Contains(t, page, "Discard the draw")

	page = app.post(t, c, "/import", nil)
	assert.Contains(t, page, noticeImportRollback)
	assert.Equal(t, drawn, app.store.Snapshot())

	// The link stays pending so the user can tick the box.
	page = app.post(t, c, "/import", url.Values{"discard-draw": {"1"}})
	assert.Contains(t, page, noticeImported)
	assert.Equal(t, undrawn, app.store.Snapshot())
}

func TestShareToken_Dismiss(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	link, err := share.URL(app.srv.URL+"/", registry.Default([]string{"Ana"}))
	require.NoError(t, err)

	resp, err := c.Get(link)
	require.NoError(t, err)
	assert.Contains(t, body(t, resp), "Load shared link")

	page := app.post(t, c, "/import/dismiss", nil)
	assert.NotContains(t, page, "Load shared link")

	before := app.store.Snapshot()
	app.post(t, c, "/import", nil)
	assert.Equal(t, before, app.store.Snapshot())
}

func TestShareToken_Malformed(t *testing.T) {
	app := newTestApp(t, nil)
	before := app.store.Snapshot()

	resp, err := app.client(t, false).Get(app.srv.URL + "/?data=not-a-token&lang=es")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?lang=es", resp.Header.Get("Location"))
	assert.Equal(t, before, app.store.Snapshot())
}

func TestShare_RequiresLogin(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	for _, path := range []string{"/share", "/share/qr"} {
		resp, err := c.Get(app.srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}
}

func TestShare(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)
	app.login(t, c, "nerea", "abc")

	resp, err := c.Get(app.srv.URL + "/share")
	require.NoError(t, err)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var out struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(body(t, resp)), &out))
	assert.True(t, strings.HasPrefix(out.URL, app.srv.URL+"/?data="), out.URL)

	got, err := share.Decode(share.TokenFromURL(out.URL))
	require.NoError(t, err)
	assert.Equal(t, app.store.Snapshot(), got)

	resp, err = c.Get(app.srv.URL + "/share/qr")
	require.NoError(t, err)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body(t, resp), "\x89PNG"))
}

func dialChat(t *testing.T, app *testApp, c *http.Client) (*websocket.Conn, *http.Response, error) {
	t.Helper()

	base, err := url.Parse(app.srv.URL)
	require.NoError(t, err)

	header := http.Header{}
	for _, cookie := range c.Jar.Cookies(base) {
		header.Add("Cookie", cookie.String())
	}

	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(app.srv.URL, "http")+"/hint/ws", header)
}

func readChat(t *testing.T, conn *websocket.Conn) chatMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg chatMessage
	require.NoError(t, conn.ReadJSON(&msg))

	return msg
}

func TestHintChat_RequiresLogin(t *testing.T) {
	app := newTestApp(t, nil)

	_, resp, err := dialChat(t, app, app.client(t, true))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHintChat(t *testing.T) {
	gen := &fakeGenerator{reply: "Something for cold feet 🧦"}
	app := newTestApp(t, gen)

	_, err := app.store.Draw(context.Background(), nil)
	require.NoError(t, err)
	target, ok := app.store.AssignedTo("erik")
	require.True(t, ok)
	require.NoError(t, app.store.UpdateWishlist(context.Background(), target.ID, "woolly socks"))

	c := app.client(t, true)
	app.login(t, c, "erik", "abc")

	conn, _, err := dialChat(t, app, c)
	require.NoError(t, err)
	defer conn.Close()

	greeting := readChat(t, conn)
	assert.Equal(t, "greeting", greeting.Type)
	assert.Contains(t, greeting.Text, "Hi Erik!")

	require.NoError(t, conn.WriteJSON(chatMessage{Type: "query", Text: "what do they want?"}))

	reply := readChat(t, conn)
	assert.Equal(t, "hint", reply.Type)
	assert.Equal(t, gen.reply, reply.Text)

	prompt := gen.lastPrompt()
	assert.Contains(t, prompt, target.Name)
	assert.Contains(t, prompt, "woolly socks")
	assert.Contains(t, prompt, "what do they want?")
}

func TestHintChat_UnknownParticipant(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)
	app.login(t, c, "erik", "abc")

	// Erik disappears when another family's state is imported.
	token, err := share.Encode(registry.Default([]string{"Ana", "Bea"}))
	require.NoError(t, err)
	_, err = app.store.Import(context.Background(), token)
	require.NoError(t, err)

	_, resp, err := dialChat(t, app, c)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHintChat_BeforeDraw(t *testing.T) {
	gen := &fakeGenerator{reply: "unused"}
	app := newTestApp(t, gen)

	c := app.client(t, true)
	app.login(t, c, "luis", "abc")

	conn, _, err := dialChat(t, app, c)
	require.NoError(t, err)
	defer conn.Close()

	readChat(t, conn)

	require.NoError(t, conn.WriteJSON(chatMessage{Type: "query", Text: "hint?"}))
	assert.Equal(t, chatMessage{Type: "hint", Text: noTargetReply}, readChat(t, conn))
	assert.Empty(t, gen.lastPrompt())
}

func TestHintChat_FallbackWithoutGenerator(t *testing.T) {
	app := newTestApp(t, nil)

	_, err := app.store.Draw(context.Background(), nil)
	require.NoError(t, err)

	c := app.client(t, true)
	app.login(t, c, "nerea", "abc")

	conn, _, err := dialChat(t, app, c)
	require.NoError(t, err)
	defer conn.Close()

	readChat(t, conn)

	require.NoError(t, conn.WriteJSON(chatMessage{Type: "query", Text: "hint?"}))
	assert.Equal(t, hint.FallbackReply, readChat(t, conn).Text)
}

func TestStaticRoutes(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client(t, true)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/healthz", http.StatusOK, "text/plain; charset=utf-8", "Ok"},
		{"/version", http.StatusOK, "text/plain; charset=utf-8", "secretsanta v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain; charset=utf-8", "Disallow: /"},
		{"/assets/app.js", http.StatusOK, "text/javascript; charset=utf-8", "navigator.share"},
		{"/assets/app.css", http.StatusOK, "text/css; charset=utf-8", "body"},
		{"/favicons/favicon.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/assets/index.html", http.StatusNotFound, "", ""},
		{"/assets/missing.js", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := c.Get(app.srv.URL + tt.path)
			require.NoError(t, err)

			got := body(t, resp)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.contentType != "" {
				assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			}
			assert.Contains(t, got, tt.contains)
		})
	}
}
