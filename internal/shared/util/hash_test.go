package util

import "testing"

func TestHashDocumentStable(t *testing.T) {
	doc := map[string]any{"risk_score": 42, "summary": map[string]int{"total_users": 3}}
	got := HashDocument(doc)
	if got != HashDocument(doc) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestHashDocumentDistinguishesContent(t *testing.T) {
	a := map[string]int{"inactive_users": 2}
	b := map[string]int{"inactive_users": 3}
	if HashDocument(a) == HashDocument(b) {
		t.Fatalf("expected different hashes for different documents")
	}
}
