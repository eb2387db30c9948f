/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Secret Santa
//
// Each participant picks their name, creates a password on first visit, and
// from then on logs in with it. Once logged in they can:
// - trigger the draw (once, for everybody)
// - see who they have to give a gift to, and nothing else
// - edit their own wishlist
// - ask Rudolph, a reindeer chatbot, for clues about their target's wishlist
// - share a link (or QR code) carrying the whole state to another device
//
// Opening a share link replaces the local state with the linked one and
// redirects to the same page without the token.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/logger"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/secretsanta/internal/auth"
	"github.com/Seednode/secretsanta/internal/hint"
	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/session"
	"github.com/Seednode/secretsanta/internal/share"
	"github.com/Seednode/secretsanta/internal/state"
)

const (
	noticeImported       = "Loaded the shared secret santa. Welcome!"
	noticeImportLogin    = "Log in before loading a shared secret santa."
	noticeImportRollback = "That link is from before the draw. Tick the box to discard the draw and load it anyway."
	noticeImportFail     = "Could not load the shared secret santa, please try again."

	noticeWishlist     = "Wishlist saved. Share the link again so everyone else sees your changes."
	noticeWishlistFail = "Could not save your wishlist, please try again."
	noticeDrawDone     = "The draw is done! Scroll down to find out who you are gifting."
	noticeDrawRepeat   = "The draw has already been done."
	noticeDrawFail     = "The draw failed, please try again."

	noTargetReply = "Nobody has been drawn for you yet, so I have no letter to peek at! 🎁"

	qrSize      = 320
	chatMaxSize = 4096
)

var pageTemplate = template.Must(template.ParseFS(assets, "assets/index.html"))

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Santa holds what the handlers share: the state store, the per-browser
// sessions and the hint client.
type Santa struct {
	cfg      *Config
	store    *state.Store
	sessions *session.Manager
	hints    *hint.Client
}

func newSanta(ctx context.Context, cfg *Config, store *state.Store, hints *hint.Client) *Santa {
	sessions := session.NewManager(ctx, store, cfg.masterKey, cfg.sessionTimeout)
	sessions.Secure = cfg.scheme() == "https"

	return &Santa{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		hints:    hints,
	}
}

type pageData struct {
	Prefix   string
	Notice   string
	Step     string
	Error    string
	Selected model.Participant
	Users    []model.Participant
	User     *model.Participant
	Target   *model.Participant
	DrawDone bool

	Pending    bool
	CanImport  bool
	UndoesDraw bool
}

func (s *Santa) home() string {
	return s.cfg.prefix + "/"
}

// requestBase derives the public address of the app from the request,
// respecting TLS and X-Forwarded-Proto if present.
func (s *Santa) requestBase(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + s.home()
}

func (s *Santa) serveIndex(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		sess := s.sessions.FromRequest(w, r)

		if token := r.URL.Query().Get(share.Param); token != "" {
			s.consumeToken(w, r, sess, token)

			return
		}

		data := s.pageData(sess)

		var buf bytes.Buffer
		if err := pageTemplate.Execute(&buf, data); err != nil {
			errs <- err

			http.Error(w, "failed to render page", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		written, err := w.Write(buf.Bytes())
		if err != nil {
			errs <- err

			return
		}

		logf(s.cfg, "SERVE: Home page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// consumeToken parks a shared state on the caller's session and redirects to
// the same page without the token. Nothing is replaced until the user
// confirms with a POST to /import.
func (s *Santa) consumeToken(w http.ResponseWriter, r *http.Request, sess *session.Session, token string) {
	if _, err := share.Decode(token); err != nil {
		logger.Warningf("Ignoring shared state from %s: %v", realIP(r), err)
	} else {
		sess.SetPending(token)

		logf(s.cfg, "STATE: Shared state awaiting confirmation from %s", realIP(r))
	}

	u := *r.URL
	q := u.Query()
	q.Del(share.Param)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.RequestURI(), http.StatusSeeOther)
}

// canImport reports whether sess may replace the shared state. Anyone may
// while there is nothing to lose; afterwards only a logged in participant.
func (s *Santa) canImport(sess *session.Session) bool {
	if _, ok := sess.User(); ok {
		return true
	}

	return s.store.Pristine()
}

func (s *Santa) importShared(r *http.Request, sess *session.Session) {
	token := sess.Pending()
	if token == "" {
		return
	}

	if !s.canImport(sess) {
		sess.SetNotice(noticeImportLogin)

		return
	}

	var (
		st  model.AppState
		err error
	)
	if r.PostFormValue("discard-draw") != "" {
		st, err = s.store.Import(r.Context(), token)
	} else {
		st, err = s.store.ImportKeepingDraw(r.Context(), token)
	}

	switch {
	case errors.Is(err, model.ErrDrawRollback):
		sess.SetNotice(noticeImportRollback)

		return
	case err != nil:
		logger.Errorf("Failed to import shared state: %v", err)
		sess.SetNotice(noticeImportFail)
	default:
		sess.SetNotice(noticeImported)

		logf(s.cfg, "STATE: Adopted shared state with %d participants from %s", len(st.Users), realIP(r))
	}

	sess.SetPending("")
}

func (s *Santa) dismissImport(_ *http.Request, sess *session.Session) {
	sess.SetPending("")
}

func (s *Santa) pageData(sess *session.Session) pageData {
	snapshot := s.store.Snapshot()

	flow, userID := sess.View()

	// The state may have been replaced by a share link since login.
	if userID != "" && snapshot.Find(userID) < 0 {
		sess.Do(func(a *auth.Session) { a.Logout() })
		flow, userID = sess.View()
	}
	if flow.Step != auth.StepSelect && snapshot.Find(flow.Selected) < 0 {
		sess.Do(func(a *auth.Session) { a.Back() })
		flow, userID = sess.View()
	}

	data := pageData{
		Prefix:   s.cfg.prefix,
		Notice:   sess.TakeNotice(),
		Step:     flow.Step.String(),
		Error:    flow.Error,
		Users:    snapshot.Users,
		DrawDone: snapshot.IsDrawDone,
	}

	if p, ok := snapshot.Participant(flow.Selected); ok {
		data.Selected = p
	}

	if p, ok := snapshot.Participant(userID); ok {
		data.User = &p

		if t, ok := snapshot.Participant(p.AssignedTo); ok && p.AssignedTo != "" {
			data.Target = &t
		}
	}

	if token := sess.Pending(); token != "" {
		if shared, err := share.Decode(token); err == nil {
			data.Pending = true
			data.CanImport = s.canImport(sess)
			data.UndoesDraw = snapshot.IsDrawDone && !shared.IsDrawDone
		}
	}

	return data
}

// action wraps a form POST: run fn against the caller's session, then go
// back to the page.
func (s *Santa) action(name string, fn func(r *http.Request, sess *session.Session)) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sess := s.sessions.FromRequest(w, r)

		fn(r, sess)

		logf(s.cfg, "ACTION: %s from %s", name, realIP(r))

		http.Redirect(w, r, s.home(), http.StatusSeeOther)
	}
}

func (s *Santa) selectParticipant(r *http.Request, sess *session.Session) {
	id := r.PostFormValue("id")

	sess.Do(func(a *auth.Session) { a.Select(id) })
}

func (s *Santa) submit(r *http.Request, sess *session.Session) {
	input := r.PostFormValue("input")

	sess.Do(func(a *auth.Session) { a.Submit(r.Context(), input) })
}

func (s *Santa) forgot(_ *http.Request, sess *session.Session) {
	sess.Do(func(a *auth.Session) { a.Forgot() })
}

func (s *Santa) back(_ *http.Request, sess *session.Session) {
	sess.Do(func(a *auth.Session) { a.Back() })
}

func (s *Santa) logout(_ *http.Request, sess *session.Session) {
	sess.Do(func(a *auth.Session) { a.Logout() })
}

func (s *Santa) saveWishlist(r *http.Request, sess *session.Session) {
	userID, ok := sess.User()
	if !ok {
		return
	}

	if err := s.store.UpdateWishlist(r.Context(), userID, r.PostFormValue("wishlist")); err != nil {
		logger.Errorf("Failed to save wishlist for %s: %v", userID, err)
		sess.SetNotice(noticeWishlistFail)

		return
	}

	sess.SetNotice(noticeWishlist)
}

func (s *Santa) draw(r *http.Request, sess *session.Session) {
	if _, ok := sess.User(); !ok {
		return
	}

	drawn, err := s.store.Draw(r.Context(), nil)
	switch {
	case errors.Is(err, model.ErrDrawFailed):
		sess.SetNotice(noticeDrawFail)
	case err != nil:
		logger.Errorf("Failed to save draw: %v", err)
		sess.SetNotice(noticeDrawFail)
	case drawn:
		sess.SetNotice(noticeDrawDone)
	default:
		sess.SetNotice(noticeDrawRepeat)
	}
}

// shareLink builds a share link for an authenticated caller.
func (s *Santa) shareLink(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := s.sessions.FromRequest(w, r)
	if _, ok := sess.User(); !ok {
		http.Error(w, "log in to share", http.StatusForbidden)

		return "", false
	}

	link, err := share.URL(s.requestBase(r), s.store.Snapshot())
	if err != nil {
		logger.Errorf("Failed to build share link: %v", err)
		http.Error(w, "failed to build share link", http.StatusInternalServerError)

		return "", false
	}

	return link, true
}

func (s *Santa) serveShare(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		link, ok := s.shareLink(w, r)
		if !ok {
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		if err := json.NewEncoder(w).Encode(map[string]string{"url": link}); err != nil {
			errs <- err

			return
		}

		logf(s.cfg, "SHARE: Link served to %s", realIP(r))
	}
}

func (s *Santa) serveShareQR(errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		link, ok := s.shareLink(w, r)
		if !ok {
			return
		}

		png, err := share.QRCode(link, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(s.cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err

			return
		}

		logf(s.cfg, "SHARE: QR code served to %s", realIP(r))
	}
}

type chatMessage struct {
	Type string `json:"type"` // "query" from clients; "greeting" or "hint" from the server
	Text string `json:"text"`
}

type chatClient struct {
	conn *websocket.Conn
	send chan chatMessage
}

// queue hands msg to the write pump unless the connection is gone.
func (c *chatClient) queue(ctx context.Context, msg chatMessage) {
	select {
	case c.send <- msg:
	case <-ctx.Done():
	}
}

func (c *chatClient) readPump(ctx context.Context, onQuery func(text string)) {
	for {
		var msg chatMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		if ctx.Err() != nil {
			return
		}

		switch msg.Type {
		case "query":
			if text := strings.TrimSpace(msg.Text); text != "" {
				onQuery(text)
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *chatClient) writePump(ctx context.Context) {
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

func (s *Santa) serveHintChat() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		sess := s.sessions.FromRequest(w, r)

		userID, ok := sess.User()
		if !ok {
			http.Error(w, "log in to chat", http.StatusUnauthorized)

			return
		}

		viewer, ok := s.store.Participant(userID)
		if !ok {
			http.Error(w, "log in to chat", http.StatusUnauthorized)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warningf("Failed to upgrade hint chat: %v", err)

			return
		}

		// The server's read and write timeouts do not apply to a long-lived chat.
		_ = conn.SetReadDeadline(time.Time{})
		_ = conn.SetWriteDeadline(time.Time{})
		conn.SetReadLimit(chatMaxSize)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &chatClient{
			conn: conn,
			send: make(chan chatMessage, 8),
		}

		go c.writePump(ctx)

		c.queue(ctx, chatMessage{Type: "greeting", Text: s.hints.Greeting(viewer.Name)})

		logf(s.cfg, "HINTS: %s connected from %s", userID, realIP(r))

		c.readPump(ctx, func(text string) {
			go func() {
				c.queue(ctx, chatMessage{Type: "hint", Text: s.answer(ctx, userID, text)})
			}()
		})

		logf(s.cfg, "HINTS: %s disconnected", userID)
	}
}

func (s *Santa) answer(ctx context.Context, userID, query string) string {
	viewer, ok := s.store.Participant(userID)
	if !ok {
		return noTargetReply
	}

	target, ok := s.store.AssignedTo(userID)
	if !ok {
		return noTargetReply
	}

	return s.hints.Hint(ctx, viewer.Name, target.Name, target.Wishlist, query)
}

func registerSanta(cfg *Config, s *Santa, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/", s.serveIndex(errs))

	mux.POST(cfg.prefix+"/login/select", s.action("select", s.selectParticipant))
	mux.POST(cfg.prefix+"/login/submit", s.action("submit", s.submit))
	mux.POST(cfg.prefix+"/login/forgot", s.action("forgot", s.forgot))
	mux.POST(cfg.prefix+"/login/back", s.action("back", s.back))
	mux.POST(cfg.prefix+"/logout", s.action("logout", s.logout))

	mux.POST(cfg.prefix+"/import", s.action("import", s.importShared))
	mux.POST(cfg.prefix+"/import/dismiss", s.action("dismiss import", s.dismissImport))

	mux.POST(cfg.prefix+"/wishlist", s.action("wishlist", s.saveWishlist))
	mux.POST(cfg.prefix+"/draw", s.action("draw", s.draw))

	mux.GET(cfg.prefix+"/share", s.serveShare(errs))
	mux.GET(cfg.prefix+"/share/qr", s.serveShareQR(errs))

	mux.GET(cfg.prefix+"/hint/ws", s.serveHintChat())
}
