package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Bundle holds the canonical, hand-authored trees keyed by locale code.
// A Bundle is immutable once built.
type Bundle struct {
	trees map[string]Tree
}

// NewBundle builds a bundle from already decoded trees.
func NewBundle(trees map[string]Tree) (*Bundle, error) {
	b := &Bundle{trees: make(map[string]Tree, len(trees))}
	for locale, t := range trees {
		code, err := Normalize(locale)
		if err != nil {
			return nil, err
		}
		if _, ok := t.(Map); !ok {
			return nil, fmt.Errorf("i18n: %s: root must be a mapping", code)
		}
		b.trees[code] = t
	}
	if len(b.trees) == 0 {
		return nil, fmt.Errorf("i18n: bundle has no locales")
	}
	return b, nil
}

// LoadEmbedded loads the locale files compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	sub, err := fs.Sub(embeddedLocales, "locales")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadDir loads *.yaml and *.json locale files from a directory.
func LoadDir(dir string) (*Bundle, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS loads every top-level *.yaml, *.yml and *.json file of fsys. The file
// stem is the locale code (ar.yaml -> "ar").
func LoadFS(fsys fs.FS) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales: %w", err)
	}
	trees := make(map[string]Tree)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := path.Ext(name)
		var decode func([]byte) (Tree, error)
		switch ext {
		case ".yaml", ".yml":
			decode = DecodeYAML
		case ".json":
			decode = DecodeJSON
		default:
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", name, err)
		}
		t, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("i18n: %s: %w", name, err)
		}
		trees[strings.TrimSuffix(name, ext)] = t
	}
	return NewBundle(trees)
}

// Tree returns the canonical tree for a normalized locale code.
func (b *Bundle) Tree(code string) (Tree, bool) {
	t, ok := b.trees[code]
	return t, ok
}

// Has reports whether code is canonical.
func (b *Bundle) Has(code string) bool {
	_, ok := b.trees[code]
	return ok
}

// Locales returns the canonical locale codes, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.trees))
	for code := range b.trees {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
