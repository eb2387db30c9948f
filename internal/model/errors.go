/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package model

import "errors"

var (
	// ErrNotFound is returned by storage backends when the namespace holds no value.
	ErrNotFound = errors.New("not found")

	// ErrDrawFailed is returned when no derangement was found within the attempt cap.
	ErrDrawFailed = errors.New("could not find a valid draw after many attempts")

	// ErrTransportDecode is returned for malformed share tokens.
	ErrTransportDecode = errors.New("malformed transport token")

	// ErrUnknownParticipant is returned when an id does not match any participant.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrPasswordSet is returned when claiming a password someone already set.
	ErrPasswordSet = errors.New("password already set")

	// ErrDrawRollback is returned when an import would undo a completed draw.
	ErrDrawRollback = errors.New("shared state would undo the completed draw")
)
