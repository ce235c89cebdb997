// Package i18n resolves localized dictionaries. Canonical locales are served
// from hand-authored trees; any other locale is machine-translated from the
// fallback tree once and memoized for the life of the process.
package i18n

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is a localized dictionary node: String, Bool, Number, Map or List.
type Tree interface {
	isTree()
}

// String is a text leaf.
type String string

// Bool is a flag leaf; never translated.
type Bool bool

// Number is a numeric leaf holding a JSON number literal; never translated.
type Number string

// MarshalJSON writes the literal unquoted.
func (n Number) MarshalJSON() ([]byte, error) {
	if !json.Valid([]byte(n)) {
		return nil, fmt.Errorf("i18n: invalid number %q", string(n))
	}
	return []byte(n), nil
}

// Entry is one key of a Map.
type Entry struct {
	Key   string
	Value Tree
}

// Map is an ordered mapping. Authoring order is kept through JSON output.
type Map []Entry

// List is an ordered sequence of nodes.
type List []Tree

func (String) isTree() {}
func (Bool) isTree()   {}
func (Number) isTree() {}
func (Map) isTree()    {}
func (List) isTree()   {}

// Get returns the value stored under key.
func (m Map) Get(key string) (Tree, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// MarshalJSON writes the entries in order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Lookup returns the string leaf at a dotted path such as "nav.projects.label".
// Numeric segments index into lists.
func Lookup(t Tree, path string) (string, bool) {
	cur := t
	for _, seg := range strings.Split(path, ".") {
		switch n := cur.(type) {
		case Map:
			next, ok := n.Get(seg)
			if !ok {
				return "", false
			}
			cur = next
		case List:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n) {
				return "", false
			}
			cur = n[i]
		default:
			return "", false
		}
	}
	s, ok := cur.(String)
	return string(s), ok
}

// CountLeaves returns the number of string leaves a translation of t would
// send to the translator under keep.
func CountLeaves(t Tree, keep func(string) bool) int {
	var texts []string
	collect(t, keep, &texts)
	return len(texts)
}

// collect appends translatable texts in depth-first order. rebuild must walk
// in exactly the same order.
func collect(t Tree, keep func(string) bool, out *[]string) {
	switch n := t.(type) {
	case String:
		if translatable(string(n)) {
			*out = append(*out, string(n))
		}
	case Bool, Number:
	case Map:
		for _, e := range n {
			if keep(e.Key) {
				continue
			}
			collect(e.Value, keep, out)
		}
	case List:
		for _, item := range n {
			collect(item, keep, out)
		}
	}
}

// rebuild copies t, replacing each translatable leaf with next().
func rebuild(t Tree, keep func(string) bool, next func() string) Tree {
	switch n := t.(type) {
	case String:
		if translatable(string(n)) {
			return String(next())
		}
		return n
	case Bool, Number:
		return n
	case Map:
		out := make(Map, len(n))
		for i, e := range n {
			if keep(e.Key) {
				out[i] = e
				continue
			}
			out[i] = Entry{Key: e.Key, Value: rebuild(e.Value, keep, next)}
		}
		return out
	case List:
		out := make(List, len(n))
		for i, item := range n {
			out[i] = rebuild(item, keep, next)
		}
		return out
	}
	return t
}

func translatable(s string) bool {
	return strings.TrimSpace(s) != ""
}

// DecodeYAML parses a YAML document into a Tree. The root must be a mapping.
// Booleans stay Bool and numbers that fit JSON become Number; every other
// scalar becomes a String.
func DecodeYAML(data []byte) (Tree, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("i18n: parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("i18n: empty document")
	}
	root, err := fromYAML(doc.Content[0])
	if err != nil {
		return nil, err
	}
	if _, ok := root.(Map); !ok {
		return nil, fmt.Errorf("i18n: root must be a mapping")
	}
	return root, nil
}

func fromYAML(n *yaml.Node) (Tree, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return fromYAML(n.Alias)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return String(""), nil
		}
		if n.Tag == "!!bool" {
			b, err := strconv.ParseBool(n.Value)
			if err != nil {
				return nil, fmt.Errorf("i18n: line %d: %w", n.Line, err)
			}
			return Bool(b), nil
		}
		if n.Tag == "!!int" || n.Tag == "!!float" {
			if num, ok := yamlNumber(n.Tag, n.Value); ok {
				return num, nil
			}
		}
		return String(n.Value), nil
	case yaml.MappingNode:
		out := make(Map, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			val, err := fromYAML(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, Entry{Key: n.Content[i].Value, Value: val})
		}
		return out, nil
	case yaml.SequenceNode:
		out := make(List, 0, len(n.Content))
		for _, c := range n.Content {
			val, err := fromYAML(c)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		}
		return out, nil
	}
	return nil, fmt.Errorf("i18n: line %d: unsupported node kind %d", n.Line, n.Kind)
}

// yamlNumber rewrites YAML numeric forms (0x1F, 1_000, 0o17) as JSON
// literals. Infinities and NaN have no JSON form and are rejected.
func yamlNumber(tag, v string) (Number, bool) {
	clean := strings.ReplaceAll(v, "_", "")
	if tag == "!!int" {
		if i, err := strconv.ParseInt(clean, 0, 64); err == nil {
			return Number(strconv.FormatInt(i, 10)), true
		}
		return "", false
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	if json.Valid([]byte(clean)) {
		return Number(clean), true
	}
	return Number(strconv.FormatFloat(f, 'g', -1, 64)), true
}

// DecodeJSON parses a JSON object into a Tree, keeping key order.
func DecodeJSON(data []byte) (Tree, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	root, err := decodeJSONValue(dec)
	if err != nil {
		return nil, fmt.Errorf("i18n: parse json: %w", err)
	}
	if _, ok := root.(Map); !ok {
		return nil, fmt.Errorf("i18n: root must be an object")
	}
	return root, nil
}

func decodeJSONValue(dec *json.Decoder) (Tree, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			out := Map{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected key token %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, Entry{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		case '[':
			out := List{}
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return nil, err
				}
				out = append(out, val)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return out, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case json.Number:
		return Number(v.String()), nil
	case nil:
		return String(""), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
