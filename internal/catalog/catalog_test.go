package catalog

import (
	"testing"
)

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Dune", "dune"},
		{"The Left Hand of Darkness", "the left hand of darkness"},
		{"Don't Panic! (Vol. 2)", "dont panic vol 2"},
		{"Café & Crème", "caf  crme"},
		{"  spaced  out  ", "  spaced  out  "},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := NormalizeTitle(tc.in); got != tc.want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTitleOnlyKeepsLowerAlnumAndSpace(t *testing.T) {
	inputs := []string{"Dune", "War & Peace: Vol. I", "ÀÉÎÕÜ", "a1 b2 C3", "日本語のタイトル"}
	for _, in := range inputs {
		got := NormalizeTitle(in)
		for _, r := range got {
			valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' '
			if !valid {
				t.Errorf("NormalizeTitle(%q) produced invalid rune %q", in, r)
			}
		}
		if again := NormalizeTitle(got); again != got {
			t.Errorf("NormalizeTitle not idempotent for %q: %q != %q", in, again, got)
		}
	}
}

func TestNormalizeTitleCollapsed(t *testing.T) {
	if got := NormalizeTitleCollapsed("The  Dispossessed:  An   Ambiguous Utopia"); got != "the dispossessed an ambiguous utopia" {
		t.Errorf("collapsed = %q", got)
	}
	if got := NormalizeTitleCollapsed("   "); got != "" {
		t.Errorf("collapsed blank = %q, want empty", got)
	}
}

func TestFromBooksDropsDuplicateIDs(t *testing.T) {
	c := FromBooks([]Book{
		{BookID: "1", Title: "First", PageCount: 100},
		{BookID: "1", Title: "Duplicate", PageCount: 100},
		{BookID: "2", Title: "Second", PageCount: 2},
	}, 3)

	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	b, ok := c.ByID("1")
	if !ok || b.Title != "First" {
		t.Errorf("ByID(1) = %+v, want the first occurrence", b)
	}
	if readable := c.Readable(); len(readable) != 1 || readable[0].BookID != "1" {
		t.Errorf("Readable = %+v, want only book 1", readable)
	}
}

func TestByIDMissing(t *testing.T) {
	c := FromBooks(nil, 3)
	if _, ok := c.ByID("nope"); ok {
		t.Error("ByID returned ok for missing id")
	}
}
