// Package translate provides the text translation and caption generation
// collaborators used by the dictionary resolver and the post workflows.
package translate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

// Translator translates one string between locales.
type Translator interface {
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Generator writes social captions for a post.
type Generator interface {
	Caption(ctx context.Context, brief string, platform models.Platform, locale string) (string, error)
}

// Identity returns text unchanged. Useful for local development without an
// API key: every locale resolves to the source strings.
type Identity struct{}

// Translate implements Translator.
func (Identity) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// languageName renders a locale code as an English language name for prompts,
// falling back to the code itself.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return code
}

func upstream(op string, err error) error {
	return fmt.Errorf("translate: %s: %w: %w", op, apperr.ErrUpstream, err)
}

// captionLimits caps caption length per platform, in runes.
var captionLimits = map[models.Platform]int{
	models.PlatformX:         280,
	models.PlatformInstagram: 2200,
	models.PlatformFacebook:  5000,
	models.PlatformLinkedIn:  3000,
	models.PlatformTikTok:    2200,
}

func clip(s string, platform models.Platform) string {
	s = strings.TrimSpace(s)
	limit, ok := captionLimits[platform]
	if !ok {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
