package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/starford/estatehub/internal/apperr"
)

// untranslatedKeys hold identifiers and markup, not prose.
var untranslatedKeys = map[string]struct{}{
	"value":     {},
	"icon":      {},
	"segment":   {},
	"href":      {},
	"indicator": {},
}

// rtlLanguages use right-to-left script.
var rtlLanguages = map[string]struct{}{
	"ar": {},
	"he": {},
	"fa": {},
	"ur": {},
	"ps": {},
	"sd": {},
	"ug": {},
	"yi": {},
}

// Normalize reduces a BCP 47 tag to its base language code:
// "fr-CA" -> "fr", "AR" -> "ar".
func Normalize(locale string) (string, error) {
	s := strings.TrimSpace(locale)
	if s == "" {
		return "", fmt.Errorf("i18n: empty locale: %w", apperr.ErrValidation)
	}
	tag, err := language.Parse(s)
	if err != nil {
		return "", fmt.Errorf("i18n: invalid locale %q: %w", locale, apperr.ErrValidation)
	}
	base, conf := tag.Base()
	if conf == language.No {
		return "", fmt.Errorf("i18n: unknown language in %q: %w", locale, apperr.ErrValidation)
	}
	return base.String(), nil
}

// Direction returns "rtl" for right-to-left locales and "ltr" otherwise.
func Direction(locale string) string {
	code, err := Normalize(locale)
	if err != nil {
		return "ltr"
	}
	if _, ok := rtlLanguages[code]; ok {
		return "rtl"
	}
	return "ltr"
}
