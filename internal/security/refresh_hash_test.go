package security

import "testing"

func TestHashRefreshToken(t *testing.T) {
	h1 := HashRefreshToken("refresh-token-1")
	h2 := HashRefreshToken("refresh-token-1")
	if h1 != h2 {
		t.Error("hash must be deterministic so the store can key rows by it")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h1))
	}
	if HashRefreshToken("refresh-token-2") == h1 {
		t.Error("different tokens must hash differently")
	}
}

func TestRefreshTokenHashEqual(t *testing.T) {
	stored := HashRefreshToken("the-token")
	if !RefreshTokenHashEqual("the-token", stored) {
		t.Error("correct token should match its stored hash")
	}
	if RefreshTokenHashEqual("other-token", stored) {
		t.Error("wrong token should not match")
	}
	if RefreshTokenHashEqual("the-token", "a"+stored) {
		t.Error("length mismatch should not match")
	}
}
