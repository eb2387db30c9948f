/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package share converts application state to and from share link tokens.
//
// A token is the JSON form of the state, base64 encoded so it survives being
// carried as a single query value. Opening a link adopts the embedded state as
// a whole; nothing is merged, so the most recently opened link wins.
package share

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/Seednode/secretsanta/internal/model"
)

// Param is the query parameter carrying the token.
const Param = "data"

// Encode serializes state into a transport token.
func Encode(state model.AppState) (string, error) {
	if state.Users == nil {
		state.Users = []model.Participant{}
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode parses a transport token. Any failure wraps model.ErrTransportDecode.
func Decode(token string) (model.AppState, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.AppState{}, fmt.Errorf("%w: empty token", model.ErrTransportDecode)
	}

	raw, err := decodeBase64(token)
	if err != nil {
		return model.AppState{}, fmt.Errorf("%w: %v", model.ErrTransportDecode, err)
	}

	var state model.AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.AppState{}, fmt.Errorf("%w: %v", model.ErrTransportDecode, err)
	}

	if state.Users == nil {
		return model.AppState{}, fmt.Errorf("%w: missing users", model.ErrTransportDecode)
	}

	return state, nil
}

// Links produced by older clients were percent-encoded before being placed in
// the query, and some messengers rewrite the alphabet, so accept all variants.
func decodeBase64(token string) ([]byte, error) {
	if unescaped, err := url.QueryUnescape(token); err == nil && strings.Contains(token, "%") {
		token = unescaped
	}

	var firstErr error
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		raw, err := enc.DecodeString(token)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, firstErr
}

// URL returns base with the encoded state as its only query parameter.
func URL(base string, state model.AppState) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}

	token, err := Encode(state)
	if err != nil {
		return "", err
	}

	u.RawQuery = url.Values{Param: []string{token}}.Encode()
	u.Fragment = ""

	return u.String(), nil
}

// TokenFromURL extracts the token from a share link. A bare token is returned
// unchanged.
func TokenFromURL(link string) string {
	link = strings.TrimSpace(link)

	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" {
		return link
	}

	return u.Query().Get(Param)
}
