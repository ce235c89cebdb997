package i18n

import (
	"context"
	"net/http"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	// LangParam is the query parameter used to select a locale.
	LangParam = "lang"
	// LangCookieName stores the user's locale preference.
	LangCookieName = "eh_lang"
)

type ctxKey struct{}

// WithLocale stores a locale code on ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFrom returns the locale stored by WithLocale, or "".
func LocaleFrom(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}

// RequestLocale picks the locale for r: the lang query parameter, then the
// preference cookie, then Accept-Language, then def. The bool reports
// whether the choice came from the query and should be persisted.
//
// An explicit lang parameter is taken as is. The cookie and Accept-Language
// only pick locales in supported; an empty supported list accepts any.
func RequestLocale(r *http.Request, def string, supported []string) (string, bool) {
	if v := strings.TrimSpace(r.URL.Query().Get(LangParam)); v != "" {
		if code, err := Normalize(v); err == nil {
			return code, true
		}
	}
	if c, err := r.Cookie(LangCookieName); err == nil {
		if code, err := Normalize(c.Value); err == nil && (len(supported) == 0 || slices.Contains(supported, code)) {
			return code, false
		}
	}
	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if code, ok := matchAccept(accept, def, supported); ok {
			return code, false
		}
	}
	return def, false
}

func matchAccept(accept, def string, supported []string) (string, bool) {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return "", false
	}
	if len(supported) == 0 {
		code, err := Normalize(tags[0].String())
		return code, err == nil
	}
	// def goes first so it wins ties and is the matcher's own default.
	candidates := make([]language.Tag, 0, len(supported)+1)
	candidates = append(candidates, language.Make(def))
	for _, s := range supported {
		candidates = append(candidates, language.Make(s))
	}
	_, idx, conf := language.NewMatcher(candidates).Match(tags...)
	if conf == language.No {
		return "", false
	}
	code, err := Normalize(candidates[idx].String())
	return code, err == nil
}

// SetLocaleCookie persists the locale preference for a year.
func SetLocaleCookie(w http.ResponseWriter, locale string) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    locale,
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware resolves the request locale and stores it on the context.
// supported is consulted per request and may be nil.
func Middleware(def string, supported func() []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var allowed []string
			if supported != nil {
				allowed = supported()
			}
			locale, persist := RequestLocale(r, def, allowed)
			if persist {
				SetLocaleCookie(w, locale)
			}
			next.ServeHTTP(w, r.WithContext(WithLocale(r.Context(), locale)))
		})
	}
}
