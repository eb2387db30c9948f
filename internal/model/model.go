/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package model holds the shared secret santa state types.
package model

// Participant is one member of the gift exchange.
//
// Password is stored in plain text and travels inside share links. Empty means
// no password has been chosen yet.
type Participant struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Wishlist   string `json:"wishlist"`
	AssignedTo string `json:"assignedTo,omitempty"`
	Password   string `json:"password,omitempty"`
}

// HasPassword reports whether the participant has already chosen a password.
func (p Participant) HasPassword() bool {
	return p.Password != ""
}

// AppState is the whole persisted application state.
type AppState struct {
	Users      []Participant `json:"users"`
	IsDrawDone bool          `json:"isDrawDone"`
}

// Clone returns a deep copy of s.
func (s AppState) Clone() AppState {
	users := make([]Participant, len(s.Users))
	copy(users, s.Users)

	return AppState{
		Users:      users,
		IsDrawDone: s.IsDrawDone,
	}
}

// Find returns the index of the participant with the given id, or -1.
func (s AppState) Find(id string) int {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return i
		}
	}

	return -1
}

// Participant returns the participant with the given id.
func (s AppState) Participant(id string) (Participant, bool) {
	i := s.Find(id)
	if i < 0 {
		return Participant{}, false
	}

	return s.Users[i], true
}
