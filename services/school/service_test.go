package school

import "testing"

func TestHashInviteCodeNormalizes(t *testing.T) {
	base := HashInviteCode("SKJ-12345678")

	if HashInviteCode("  skj-12345678  ") != base {
		t.Fatal("case and surrounding whitespace must not change the hash")
	}
	if HashInviteCode("SKJ-12345679") == base {
		t.Fatal("different codes must hash differently")
	}
	if len(base) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(base))
	}
}
