/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package hint asks a text generator for playful clues about a wishlist,
// without ever handing the wishlist over verbatim.
package hint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/logger"
)

const (
	DefaultLanguage = "Spanish"

	// FallbackReply is shown whenever the generator fails or says nothing.
	FallbackReply = "Ho ho ho! My magic connection froze over. Shall we try again? 🦌"

	emptyWishlist = "(they have not written anything yet, what a disaster!)"
)

// ErrDisabled is returned by the generator used when no API key is set.
var ErrDisabled = errors.New("hint generator disabled")

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type disabled struct{}

func (disabled) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// Disabled returns a Generator that always fails.
func Disabled() Generator {
	return disabled{}
}

type Client struct {
	gen      Generator
	language string
}

// New returns a Client answering in language. A nil gen disables hints.
func New(gen Generator, language string) *Client {
	if gen == nil {
		gen = Disabled()
	}
	if language == "" {
		language = DefaultLanguage
	}

	return &Client{gen: gen, language: language}
}

// Greeting is the chat opener shown to viewer.
func (c *Client) Greeting(viewer string) string {
	return fmt.Sprintf("Hi %s! I'm Rudolph, the cheeky reindeer. I've read your secret friend's letter... 🕵️ Ask me and I'll give you clues!", viewer)
}

// Hint answers query about target's wishlist on behalf of viewer. It never
// fails: generator errors and empty replies both yield FallbackReply.
func (c *Client) Hint(ctx context.Context, viewer, target, wishlist, query string) string {
	reply, err := c.gen.Generate(ctx, c.Prompt(viewer, target, wishlist, query))
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			logger.Warningf("Failed to generate hint: %v", err)
		}

		return FallbackReply
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return FallbackReply
	}

	return reply
}

// Prompt builds the instruction sent to the generator.
func (c *Client) Prompt(viewer, target, wishlist, query string) string {
	if strings.TrimSpace(wishlist) == "" {
		wishlist = emptyWishlist
	}

	var b strings.Builder

	fmt.Fprintf(&b, "You are \"Rudolph the Cheeky Reindeer\", a sarcastic and funny Christmas assistant for a family secret santa.\n\n")
	fmt.Fprintf(&b, "SITUATION:\n")
	fmt.Fprintf(&b, "- User: %s\n", viewer)
	fmt.Fprintf(&b, "- They must give a gift to: %s\n", target)
	fmt.Fprintf(&b, "- THE REAL WISHLIST OF %s IS: %q\n\n", target, wishlist)
	fmt.Fprintf(&b, "GOLDEN RULE:\n")
	fmt.Fprintf(&b, "NEVER reveal the wishlist literally. The user cannot see it; you are the go-between. ")
	fmt.Fprintf(&b, "Give HINTS, suggestions or riddles based on what was asked for.\n\n")
	fmt.Fprintf(&b, "Instructions:\n")
	fmt.Fprintf(&b, "1. The user asks: %q\n", query)
	fmt.Fprintf(&b, "2. Answer in %s, at most 2 sentences.\n", c.language)
	fmt.Fprintf(&b, "3. Be funny, a little absurd, and use Christmas emoji 🎄.\n")
	fmt.Fprintf(&b, "4. If asked \"what do they want?\", answer along the lines of \"Hmm, looks like they like round things...\", depending on the real list.\n")
	fmt.Fprintf(&b, "5. Never mention the name of the gift recipient directly; keep the mystery even if the user already knows.\n")

	return b.String()
}
