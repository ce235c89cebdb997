package i18n

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeYAMLKeepsOrderAndTypes(t *testing.T) {
	src := []byte(`
zeta: last letter
alpha: first letter
enabled: true
count: 3
empty: ~
items:
  - label: One
    value: one
`)
	got, err := DecodeYAML(src)
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	want := Map{
		{Key: "zeta", Value: String("last letter")},
		{Key: "alpha", Value: String("first letter")},
		{Key: "enabled", Value: Bool(true)},
		{Key: "count", Value: Number("3")},
		{Key: "empty", Value: String("")},
		{Key: "items", Value: List{Map{
			{Key: "label", Value: String("One")},
			{Key: "value", Value: String("one")},
		}}},
	}
	if diff := cmp.Diff(Tree(want), got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestDecodeYAMLRejectsScalarRoot(t *testing.T) {
	if _, err := DecodeYAML([]byte(`just a string`)); err == nil {
		t.Error("expected error for scalar root")
	}
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	in := []byte(`{"b":"two","a":{"y":true,"x":["p","q"]},"n":12}`)
	tree, err := DecodeJSON(in)
	if err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	out, err := json.Marshal(tree)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"b":"two","a":{"y":true,"x":["p","q"]},"n":12}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestNumbersAreLeftAlone(t *testing.T) {
	got, err := DecodeYAML([]byte(`
hex: 0x1F
big: 1_000_000
ratio: 2.5e3
forever: .inf
label: Rooms
`))
	if err != nil {
		t.Fatalf("DecodeYAML: %v", err)
	}
	want := Map{
		{Key: "hex", Value: Number("31")},
		{Key: "big", Value: Number("1000000")},
		{Key: "ratio", Value: Number("2.5e3")},
		{Key: "forever", Value: String(".inf")},
		{Key: "label", Value: String("Rooms")},
	}
	if diff := cmp.Diff(Tree(want), got); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}

	// Only the two strings would go to the translator.
	if n := CountLeaves(got, func(string) bool { return false }); n != 2 {
		t.Errorf("CountLeaves = %d, want 2", n)
	}
	out, err := json.Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"hex":31,"big":1000000,"ratio":2.5e3,"forever":".inf","label":"Rooms"}` {
		t.Errorf("marshal = %s", out)
	}
}

func TestLookup(t *testing.T) {
	tree := Map{
		{Key: "nav", Value: List{Map{{Key: "label", Value: String("Projects")}}}},
		{Key: "flag", Value: Bool(true)},
	}
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"nav.0.label", "Projects", true},
		{"nav.1.label", "", false},
		{"nav.x", "", false},
		{"flag", "", false},
		{"missing.key", "", false},
	}
	for _, tc := range cases {
		got, ok := Lookup(tree, tc.path)
		if got != tc.want || ok != tc.ok {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCountLeavesSkipsKeptAndBlank(t *testing.T) {
	tree := Map{
		{Key: "title", Value: String("Bin")},
		{Key: "blank", Value: String("  ")},
		{Key: "href", Value: String("/bin")},
		{Key: "value", Value: Map{{Key: "nested", Value: String("kept whole")}}},
		{Key: "list", Value: List{String("a"), Bool(false), String("b")}},
	}
	keep := func(k string) bool { return k == "href" || k == "value" }
	if n := CountLeaves(tree, keep); n != 3 {
		t.Errorf("CountLeaves = %d, want 3", n)
	}
}

func TestEmbeddedBundle(t *testing.T) {
	b, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("LoadEmbedded: %v", err)
	}
	if diff := cmp.Diff([]string{"ar", "en"}, b.Locales()); diff != "" {
		t.Errorf("locales (-want +got):\n%s", diff)
	}
	ar, _ := b.Tree("ar")
	if s, _ := Lookup(ar, "toasts.binned"); s != "تم النقل إلى السلة" {
		t.Errorf("ar toasts.binned = %q", s)
	}
	en, _ := b.Tree("en")
	if s, _ := Lookup(en, "bin.restore"); s != "Restore" {
		t.Errorf("en bin.restore = %q", s)
	}
}

func TestNormalizeAndDirection(t *testing.T) {
	for in, want := range map[string]string{"fr-CA": "fr", "AR": "ar", " en-us ": "en", "zh-Hant-TW": "zh"} {
		got, err := Normalize(in)
		if err != nil || got != want {
			t.Errorf("Normalize(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := Normalize(""); err == nil {
		t.Error("empty locale should fail")
	}
	if _, err := Normalize("not a locale!"); err == nil {
		t.Error("garbage locale should fail")
	}
	if Direction("ar-EG") != "rtl" || Direction("en") != "ltr" {
		t.Error("direction mismatch")
	}
}
