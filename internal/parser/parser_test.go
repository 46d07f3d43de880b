package parser

import (
	"testing"
)

func TestParse_SingleReference(t *testing.T) {
	refs := Parse("See [My Note](user://abc123) for details.")
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[0].Target != "user://abc123" {
		t.Errorf("target = %q, want %q", refs[0].Target, "user://abc123")
	}
	if refs[0].Label != "My Note" {
		t.Errorf("label = %q, want %q", refs[0].Label, "My Note")
	}
}

func TestParse_OrderPreserved(t *testing.T) {
	refs := Parse("[b](user://b) then [a](user://a) then [b](user://b)")
	if len(refs) != 3 {
		t.Fatalf("len(refs) = %d, want 3", len(refs))
	}
	want := []string{"user://b", "user://a", "user://b"}
	for i, w := range want {
		if refs[i].Target != w {
			t.Errorf("refs[%d].Target = %q, want %q", i, refs[i].Target, w)
		}
	}
}

func TestParse_BlockContext(t *testing.T) {
	content := "First paragraph.\n\nSecond with [x](user://x) inside.\n\nThird."
	refs := Parse(content)
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[0].Context != "Second with [x](user://x) inside." {
		t.Errorf("context = %q", refs[0].Context)
	}
}

func TestParse_ForeignSchemesIncluded(t *testing.T) {
	// Scheme filtering is the consumer's job, not the parser's.
	refs := Parse("[site](https://example.com) and [n](user://n)")
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2", len(refs))
	}
}

func TestParse_EmptyAndPlainContent(t *testing.T) {
	if refs := Parse(""); refs != nil {
		t.Errorf("expected nil for empty content, got %v", refs)
	}
	if refs := Parse("no references here, just [brackets] and (parens)"); len(refs) != 0 {
		t.Errorf("expected no refs, got %v", refs)
	}
}

func TestParse_EmptyLabel(t *testing.T) {
	refs := Parse("bare [](user://bare)")
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[0].Label != "" {
		t.Errorf("label = %q, want empty", refs[0].Label)
	}
}
