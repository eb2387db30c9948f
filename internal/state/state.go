/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package state owns the in-memory application state and its persistence.
//
// The state is loaded once, mutated many times, and written back to the
// storage backend after every mutation. Mutations are serialized by a mutex
// so the read-modify-write-persist sequence never interleaves, which also
// makes the draw's "already done?" check race free.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/logger"

	"github.com/Seednode/secretsanta/internal/draw"
	"github.com/Seednode/secretsanta/internal/model"
	"github.com/Seednode/secretsanta/internal/registry"
	"github.com/Seednode/secretsanta/internal/share"
	"github.com/Seednode/secretsanta/internal/storage"
)

// DefaultNamespace is the storage key used when none is configured.
const DefaultNamespace = "fuertes_secret_santa_v1"

// Source records where a loaded state came from.
type Source int

const (
	SourceToken Source = iota
	SourceLocal
	SourceDefault
	// SourceMemory means the backend could not be read and the state already
	// in memory was kept.
	SourceMemory
)

func (s Source) String() string {
	switch s {
	case SourceToken:
		return "token"
	case SourceLocal:
		return "local"
	case SourceDefault:
		return "default"
	case SourceMemory:
		return "memory"
	}

	return fmt.Sprintf("Source(%d)", int(s))
}

type Store struct {
	backend   storage.Backend
	namespace string
	names     []string

	mu      sync.RWMutex
	current model.AppState
}

// New returns a Store backed by backend. names seeds the default state.
func New(backend storage.Backend, namespace string, names []string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Store{
		backend:   backend,
		namespace: namespace,
		names:     names,
		current:   registry.Default(names),
	}
}

// Load resolves the current state: a decodable token wins and is persisted
// right away, then whatever the backend holds, then a fresh registry state.
// A malformed token counts as no token and a malformed payload as nothing
// stored; both are logged. A backend read failure keeps the state already in
// memory. A token is adopted even if persisting it fails; the write error is
// returned for logging.
func (s *Store) Load(ctx context.Context, token string) (model.AppState, Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != "" {
		decoded, err := share.Decode(token)
		if err == nil {
			s.current = decoded

			return s.current.Clone(), SourceToken, s.persistLocked(ctx, decoded)
		}

		logger.Warningf("Failed to load shared state: %v", err)
	}

	local, err := s.readLocked(ctx)
	switch {
	case err == nil:
		s.current = local

		return s.current.Clone(), SourceLocal, nil
	case errors.Is(err, model.ErrNotFound), errors.Is(err, errMalformedPayload):
		s.current = registry.Default(s.names)

		return s.current.Clone(), SourceDefault, nil
	default:
		logger.Errorf("Failed to read stored state: %v", err)

		return s.current.Clone(), SourceMemory, nil
	}
}

var errMalformedPayload = errors.New("malformed stored state")

// readLocked returns model.ErrNotFound when nothing is stored and
// errMalformedPayload when the stored value does not parse. Other errors come
// from the backend itself.
func (s *Store) readLocked(ctx context.Context) (model.AppState, error) {
	raw, err := s.backend.Read(ctx, s.namespace)
	if err != nil {
		return model.AppState{}, err
	}

	var st model.AppState
	if err := json.Unmarshal(raw, &st); err != nil {
		logger.Warningf("Failed to parse stored state: %v", err)
		return model.AppState{}, errMalformedPayload
	}

	if st.Users == nil {
		logger.Warningf("Ignoring stored state without users")
		return model.AppState{}, errMalformedPayload
	}

	return st, nil
}

// Import replaces the current state with a decoded share token and persists
// it. Unlike Load, a malformed token is returned as an error and leaves the
// current state untouched.
func (s *Store) Import(ctx context.Context, token string) (model.AppState, error) {
	return s.importToken(ctx, token, true)
}

// ImportKeepingDraw is Import, except that a token whose draw has not
// happened is refused with model.ErrDrawRollback once the draw is done.
func (s *Store) ImportKeepingDraw(ctx context.Context, token string) (model.AppState, error) {
	return s.importToken(ctx, token, false)
}

func (s *Store) importToken(ctx context.Context, token string, allowRollback bool) (model.AppState, error) {
	decoded, err := share.Decode(token)
	if err != nil {
		return model.AppState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !allowRollback && s.current.IsDrawDone && !decoded.IsDrawDone {
		return model.AppState{}, model.ErrDrawRollback
	}

	if err := s.persistLocked(ctx, decoded); err != nil {
		return model.AppState{}, err
	}
	s.current = decoded

	return s.current.Clone(), nil
}

// Pristine reports whether nobody has claimed a password and no draw has
// happened, i.e. there is nothing an import could destroy.
func (s *Store) Pristine() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current.IsDrawDone {
		return false
	}
	for _, p := range s.current.Users {
		if p.HasPassword() {
			return false
		}
	}

	return true
}

// Save persists st and makes it the current state.
func (s *Store) Save(ctx context.Context, st model.AppState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persistLocked(ctx, st); err != nil {
		return err
	}
	s.current = st.Clone()

	return nil
}

func (s *Store) persistLocked(ctx context.Context, st model.AppState) error {
	if st.Users == nil {
		st.Users = []model.Participant{}
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.backend.Write(ctx, s.namespace, raw); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() model.AppState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Clone()
}

// Participant looks up a participant in the current state.
func (s *Store) Participant(id string) (model.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current.Participant(id)
}

// AssignedTo returns the participant id must gift, if a draw assigned one.
func (s *Store) AssignedTo(id string) (model.Participant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.current.Participant(id)
	if !ok || p.AssignedTo == "" {
		return model.Participant{}, false
	}

	return s.current.Participant(p.AssignedTo)
}

// mutate applies fn to a copy of the current state and persists the result.
// The current state only changes if persisting succeeds.
func (s *Store) mutate(ctx context.Context, fn func(st *model.AppState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	if err := fn(&next); err != nil {
		return err
	}

	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.current = next

	return nil
}

// SetPassword stores a new password for participant id.
func (s *Store) SetPassword(ctx context.Context, id, password string) error {
	return s.mutate(ctx, func(st *model.AppState) error {
		i := st.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", model.ErrUnknownParticipant, id)
		}
		st.Users[i].Password = password

		return nil
	})
}

// ClaimPassword sets the first password of participant id. It fails with
// model.ErrPasswordSet if one was set in the meantime.
func (s *Store) ClaimPassword(ctx context.Context, id, password string) error {
	return s.mutate(ctx, func(st *model.AppState) error {
		i := st.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", model.ErrUnknownParticipant, id)
		}
		if st.Users[i].HasPassword() {
			return model.ErrPasswordSet
		}
		st.Users[i].Password = password

		return nil
	})
}

// UpdateWishlist replaces the wishlist of participant id.
func (s *Store) UpdateWishlist(ctx context.Context, id, wishlist string) error {
	return s.mutate(ctx, func(st *model.AppState) error {
		i := st.Find(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", model.ErrUnknownParticipant, id)
		}
		st.Users[i].Wishlist = wishlist

		return nil
	})
}

// Draw assigns gift targets once. It reports false without touching anything
// when the draw has already happened, and leaves the state unchanged when the
// engine fails.
func (s *Store) Draw(ctx context.Context, rng draw.Rand) (bool, error) {
	drawn := false

	err := s.mutate(ctx, func(st *model.AppState) error {
		if st.IsDrawDone {
			return errAlreadyDrawn
		}

		users, err := draw.Perform(rng, st.Users)
		if err != nil {
			return err
		}

		st.Users = users
		st.IsDrawDone = true
		drawn = true

		return nil
	})
	if errors.Is(err, errAlreadyDrawn) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return drawn, nil
}

var errAlreadyDrawn = errors.New("draw already done")
