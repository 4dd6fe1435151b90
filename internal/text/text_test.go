package text

import "testing"

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"hello world", 2},
		{"他转过身去", 5},
		{"他说 hello 然后离开", 7},
		{"don't stop", 3},
		{"one,two;three", 3},
		{"  spaced   out  ", 2},
	}
	for _, tt := range tests {
		if got := CountWords(tt.in); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPassages(t *testing.T) {
	doc := "# Chapter One\n\nFirst paragraph\nstill first.\n\nSecond paragraph.\n"
	got := Passages(doc)
	if len(got) != 3 {
		t.Fatalf("expected 3 passages, got %d: %+v", len(got), got)
	}
	if got[1].Text != "First paragraph\nstill first." {
		t.Errorf("unexpected second passage: %q", got[1].Text)
	}
	if got[1].StartLine != 3 || got[1].EndLine != 4 {
		t.Errorf("unexpected lines for second passage: %d-%d", got[1].StartLine, got[1].EndLine)
	}
}

func TestPassageContaining(t *testing.T) {
	doc := "alpha beta\n\ngamma delta\n"
	p, ok := PassageContaining(doc, "delta")
	if !ok || p.Text != "gamma delta" {
		t.Errorf("got %+v, ok=%v", p, ok)
	}
	if p.StartLine != 3 || p.EndLine != 3 {
		t.Errorf("unexpected lines: %d-%d", p.StartLine, p.EndLine)
	}
	if _, ok := PassageContaining(doc, "omega"); ok {
		t.Error("expected no passage for absent substring")
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("abcdef", 4); got != "abcd..." {
		t.Errorf("got %q", got)
	}
	if got := Excerpt("abc", 4); got != "abc" {
		t.Errorf("got %q", got)
	}
	// rune-safe truncation
	if got := Excerpt("他转过身去", 2); got != "他转..." {
		t.Errorf("got %q", got)
	}
}
