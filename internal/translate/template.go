package translate

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/starford/estatehub/internal/apperr"
	"github.com/starford/estatehub/internal/models"
)

// Template writes deterministic captions without calling a model.
type Template struct{}

var platformCallToAction = map[models.Platform]string{
	models.PlatformInstagram: "Link in bio.",
	models.PlatformFacebook:  "Message us to book a viewing.",
	models.PlatformLinkedIn:  "Get in touch to learn more.",
	models.PlatformX:         "DM for details.",
	models.PlatformTikTok:    "Follow for the full tour.",
}

// Caption implements Generator.
func (Template) Caption(_ context.Context, brief string, platform models.Platform, _ string) (string, error) {
	brief = strings.Join(strings.Fields(brief), " ")
	if brief == "" {
		return "", fmt.Errorf("translate: caption: empty brief: %w", apperr.ErrValidation)
	}
	parts := []string{brief}
	if cta := platformCallToAction[platform]; cta != "" {
		parts = append(parts, cta)
	}
	if tags := hashtags(brief, 3); tags != "" {
		parts = append(parts, tags)
	}
	return clip(strings.Join(parts, "\n\n"), platform), nil
}

// hashtags turns the first n words longer than four letters into tags.
func hashtags(text string, n int) string {
	var tags []string
	seen := map[string]bool{}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }) {
		if len(tags) == n {
			break
		}
		w = strings.ToLower(w)
		if len([]rune(w)) <= 4 || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, "#"+w)
	}
	return strings.Join(tags, " ")
}
