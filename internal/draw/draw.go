/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package draw assigns secret santa pairs.
//
// A draw is a derangement of the participant list: everyone gives exactly one
// gift, receives exactly one gift, and never draws themselves. Permutations are
// sampled uniformly and rejected until one has no fixed points. For the group
// sizes this app is used with that takes a handful of attempts; the cap turns
// impossible inputs (zero or one participant) into an error instead of a hang.
package draw

import (
	"math/rand/v2"

	"github.com/Seednode/secretsanta/internal/model"
)

// MaxAttempts bounds the number of shuffles tried by Perform.
const MaxAttempts = 1000

// Rand is the source of randomness used for shuffling.
type Rand interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// Default is backed by the auto-seeded math/rand/v2 generator.
var Default Rand = globalRand{}

// Shuffle performs an in-place Fisher-Yates shuffle.
func Shuffle(rng Rand, ps []model.Participant) {
	for i := len(ps) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		ps[i], ps[j] = ps[j], ps[i]
	}
}

// Perform returns a copy of participants with AssignedTo populated, where
// participants[i] gifts shuffled[i]. It returns model.ErrDrawFailed when no
// valid assignment was found within MaxAttempts. The input is not modified.
func Perform(rng Rand, participants []model.Participant) ([]model.Participant, error) {
	if rng == nil {
		rng = Default
	}

	if len(participants) == 0 {
		return nil, model.ErrDrawFailed
	}

	shuffled := make([]model.Participant, len(participants))

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		copy(shuffled, participants)
		Shuffle(rng, shuffled)

		if !deranged(participants, shuffled) {
			continue
		}

		out := make([]model.Participant, len(participants))
		for i, p := range participants {
			p.AssignedTo = shuffled[i].ID
			out[i] = p
		}

		return out, nil
	}

	return nil, model.ErrDrawFailed
}

func deranged(a, b []model.Participant) bool {
	for i := range a {
		if a[i].ID == b[i].ID {
			return false
		}
	}

	return true
}
