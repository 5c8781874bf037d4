package agent

import (
	"strings"
	"testing"
)

func TestUnwrapSQL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```sql\nSELECT 1\n```", "SELECT 1"},
		{"```\nSELECT 1\n```", "SELECT 1"},
		{"sql SELECT 1", "SELECT 1"},
		{"  SELECT 1  ", "SELECT 1"},
		{"SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		if got := UnwrapSQL(tc.in); got != tc.want {
			t.Errorf("UnwrapSQL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripLongLists(t *testing.T) {
	var b strings.Builder
	b.WriteString("סיכום קצר\n")
	for i := 0; i < 25; i++ {
		b.WriteString("- פריט\n")
	}
	b.WriteString("שורה מסכמת")

	out := StripLongLists(b.String(), 20)
	if strings.Contains(out, "- פריט") {
		t.Error("bullet lines should have been removed")
	}
	if !strings.Contains(out, "סיכום קצר") || !strings.Contains(out, "שורה מסכמת") {
		t.Errorf("prose lines lost: %q", out)
	}
}

func TestStripLongLists_ShortListKept(t *testing.T) {
	in := "פתיח\n- אחד\n- שניים\nסיום"
	if got := StripLongLists(in, 20); got != in {
		t.Errorf("short list should be untouched, got %q", got)
	}
}
