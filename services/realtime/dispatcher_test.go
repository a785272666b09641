package realtime

import (
	"testing"

	"github.com/djsoulspotti-ops/skajla/services/gamification"
)

func TestReactionActionCreditsAuthor(t *testing.T) {
	if got := reactionAction("helpful"); got != gamification.ActionPeerHelped {
		t.Fatalf("helpful reaction = %s, want peer_helped", got)
	}
	for _, r := range []string{"👍", "heart", "fire"} {
		if got := reactionAction(r); got != gamification.ActionReactionReceived {
			t.Errorf("reaction %q = %s, want reaction_received", r, got)
		}
	}
}
