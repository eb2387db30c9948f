/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package registry seeds the initial participant list.
package registry

import (
	"strconv"
	"strings"

	"github.com/gosimple/slug"

	"github.com/Seednode/secretsanta/internal/model"
)

// FamilyMembers is the default participant list.
var FamilyMembers = []string{
	"Erik",
	"Adrián",
	"Corinne",
	"Luis",
	"Blanca",
	"Alan",
	"Begoña",
	"Scott",
	"Aaron",
	"Nerea",
}

// ID derives a participant id from a display name.
func ID(name string) string {
	id := slug.Make(strings.TrimSpace(name))
	if id == "" {
		return strings.ToLower(strings.TrimSpace(name))
	}

	return id
}

// Default builds a fresh state with one participant per name. Blank names are
// skipped and colliding ids get a numeric suffix.
func Default(names []string) model.AppState {
	users := make([]model.Participant, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		base := ID(name)
		id := base
		for n := 2; seen[id]; n++ {
			id = base + "-" + strconv.Itoa(n)
		}
		seen[id] = true

		users = append(users, model.Participant{
			ID:   id,
			Name: name,
		})
	}

	return model.AppState{
		Users:      users,
		IsDrawDone: false,
	}
}
