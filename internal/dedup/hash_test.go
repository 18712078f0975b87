package dedup

import "testing"

func TestHash_StableForSameInput(t *testing.T) {
	a := Hash("Title", "some content here")
	b := Hash("Title", "some content here")
	if a != b {
		t.Errorf("expected stable hash, got %q vs %q", a, b)
	}
}

func TestHash_DiffersForDifferentInput(t *testing.T) {
	a := Hash("Title One", "some content")
	b := Hash("Title Two", "some content")
	if a == b {
		t.Error("expected different hashes for different titles")
	}
}
