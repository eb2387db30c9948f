/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package auth implements the per-browser login flow: pick a participant,
// create or enter a password, and recover a forgotten one with the family
// master key.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Seednode/secretsanta/internal/model"
)

const (
	// DefaultMasterKey unlocks password recovery unless configured otherwise.
	DefaultMasterKey = "NAVIDAD"

	// MinPasswordLength is counted in characters, not bytes.
	MinPasswordLength = 3

	MsgPasswordTooShort   = "password must be at least 3 characters"
	MsgIncorrectPassword  = "incorrect password"
	MsgIncorrectMasterKey = "incorrect master key"
	MsgPasswordNotSaved   = "could not save password, try again"
	MsgPasswordAlreadySet = "someone already set a password for this name, enter it"
)

type Step int

const (
	StepSelect Step = iota
	StepCreatePassword
	StepEnterPassword
	StepRecoveryCheck
	StepResetPassword
)

func (s Step) String() string {
	switch s {
	case StepSelect:
		return "select"
	case StepCreatePassword:
		return "create-password"
	case StepEnterPassword:
		return "enter-password"
	case StepRecoveryCheck:
		return "recovery-check"
	case StepResetPassword:
		return "reset-password"
	}

	return fmt.Sprintf("Step(%d)", int(s))
}

// Directory is the slice of the state store the flow needs.
type Directory interface {
	Participant(id string) (model.Participant, bool)
	// ClaimPassword sets a first password, failing with model.ErrPasswordSet
	// if the participant already has one.
	ClaimPassword(ctx context.Context, id, password string) error
	SetPassword(ctx context.Context, id, password string) error
}

// Flow is the transient part of a login attempt.
type Flow struct {
	Selected string
	Step     Step
	Input    string
	Error    string
}

// Session pairs a flow with the identity it eventually authenticates.
// Sessions are not safe for concurrent use; callers serialize access.
type Session struct {
	Flow Flow

	dir       Directory
	masterKey string
	user      string
}

func NewSession(dir Directory, masterKey string) *Session {
	if masterKey == "" {
		masterKey = DefaultMasterKey
	}

	return &Session{
		dir:       dir,
		masterKey: masterKey,
	}
}

// User returns the authenticated participant id, if any.
func (s *Session) User() (string, bool) {
	return s.user, s.user != ""
}

func (s *Session) reset() {
	s.Flow = Flow{Step: StepSelect}
}

// Select starts a login attempt for id. Unknown ids are ignored.
func (s *Session) Select(id string) {
	p, ok := s.dir.Participant(id)
	if !ok {
		return
	}

	step := StepCreatePassword
	if p.HasPassword() {
		step = StepEnterPassword
	}

	s.Flow = Flow{Selected: p.ID, Step: step}
}

// Submit feeds input to the current step.
func (s *Session) Submit(ctx context.Context, input string) {
	switch s.Flow.Step {
	case StepSelect:
		return
	case StepCreatePassword, StepResetPassword:
		s.Flow.Input = input

		if utf8.RuneCountInString(input) < MinPasswordLength {
			s.Flow.Error = MsgPasswordTooShort
			return
		}

		save := s.dir.SetPassword
		if s.Flow.Step == StepCreatePassword {
			save = s.dir.ClaimPassword
		}

		err := save(ctx, s.Flow.Selected, input)
		if errors.Is(err, model.ErrPasswordSet) {
			// Another browser got there first.
			s.Flow = Flow{Selected: s.Flow.Selected, Step: StepEnterPassword, Error: MsgPasswordAlreadySet}
			return
		}
		if err != nil {
			s.Flow.Error = MsgPasswordNotSaved
			return
		}

		s.authenticate()
	case StepEnterPassword:
		s.Flow.Input = input

		p, ok := s.dir.Participant(s.Flow.Selected)
		if !ok || p.Password != input {
			s.Flow.Error = MsgIncorrectPassword
			return
		}

		s.authenticate()
	case StepRecoveryCheck:
		s.Flow.Input = input

		if !strings.EqualFold(input, s.masterKey) {
			s.Flow.Error = MsgIncorrectMasterKey
			return
		}

		s.Flow = Flow{Selected: s.Flow.Selected, Step: StepResetPassword}
	}
}

func (s *Session) authenticate() {
	s.user = s.Flow.Selected
	s.reset()
}

// Forgot switches from password entry to the master key check.
func (s *Session) Forgot() {
	if s.Flow.Step != StepEnterPassword {
		return
	}

	s.Flow = Flow{Selected: s.Flow.Selected, Step: StepRecoveryCheck}
}

// Back abandons the current attempt.
func (s *Session) Back() {
	if s.Flow.Step == StepSelect {
		return
	}

	s.reset()
}

func (s *Session) Logout() {
	s.user = ""
	s.reset()
}
