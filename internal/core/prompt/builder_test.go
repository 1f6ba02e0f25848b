package prompt

import (
	"strings"
	"testing"

	"github.com/luminahq/lumina/internal/core/domain"
)

func result(id, text string) domain.QueryResult {
	return domain.QueryResult{
		Fragment: domain.Fragment{ID: id, DocumentID: "doc", Text: text},
		Score:    0.5,
	}
}

func TestBuildKeepsRankingOrder(t *testing.T) {
	results := []domain.QueryResult{
		result("a", "first fragment"),
		result("b", "second fragment"),
		result("c", "third fragment"),
	}

	out := Build("what?", results, 1000)

	posFirst := strings.Index(out, "first fragment")
	posSecond := strings.Index(out, "second fragment")
	posThird := strings.Index(out, "third fragment")
	if posFirst < 0 || posSecond < 0 || posThird < 0 {
		t.Fatalf("expected all fragments in prompt:\n%s", out)
	}
	if !(posFirst < posSecond && posSecond < posThird) {
		t.Fatalf("fragments out of ranking order: %d %d %d", posFirst, posSecond, posThird)
	}
	if !strings.Contains(out, "[Source 1]") || !strings.Contains(out, "[Source 3]") {
		t.Fatalf("expected source labels, got:\n%s", out)
	}
}

func TestBuildTruncatesAtFragmentBoundary(t *testing.T) {
	big := strings.Repeat("x", 400) // ~100 tokens
	results := []domain.QueryResult{
		result("a", big),
		result("b", big),
		result("c", "small tail fragment"),
	}

	// Budget fits one large fragment only.
	out := Build("q", results, 150)

	if !strings.Contains(out, "[Source 1]") {
		t.Fatalf("expected first fragment included")
	}
	if strings.Contains(out, "[Source 2]") || strings.Contains(out, "small tail fragment") {
		t.Fatalf("expected later fragments dropped, got:\n%s", out)
	}
}

func TestBuildEmptyRetrievalStillWellFormed(t *testing.T) {
	out := Build("what is ML?", nil, 3000)

	if out == "" {
		t.Fatalf("expected non-empty prompt")
	}
	if !strings.Contains(out, "what is ML?") {
		t.Fatalf("expected question in prompt")
	}
	if !strings.Contains(out, "general knowledge") {
		t.Fatalf("expected general-knowledge fallback instruction, got:\n%s", out)
	}
}

func TestBuildIsPure(t *testing.T) {
	results := []domain.QueryResult{result("a", "alpha"), result("b", "beta")}
	first := Build("q", results, 100)
	second := Build("q", results, 100)
	if first != second {
		t.Fatalf("expected identical prompts for identical inputs")
	}
}

func TestBuildUsesSourceFileMetadata(t *testing.T) {
	res := domain.QueryResult{
		Fragment: domain.Fragment{
			ID:         "a",
			DocumentID: "doc",
			Index:      2,
			Text:       "content",
			Metadata:   map[string]any{"source_file": "notes.txt"},
		},
	}
	out := Build("q", []domain.QueryResult{res}, 100)
	if !strings.Contains(out, "file=notes.txt fragment=2") {
		t.Fatalf("expected source file label, got:\n%s", out)
	}
}
