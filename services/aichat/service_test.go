package aichat

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

func TestAskValidatesBeforeAnythingElse(t *testing.T) {
	s := NewService(nil, nil, nil, nil, logging.Nop())
	ctx := context.Background()

	if _, err := s.Ask(ctx, 1, 1, "   "); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatal("blank question must be rejected")
	}

	long := strings.Repeat("a", maxQuestionLen+1)
	if _, err := s.Ask(ctx, 1, 1, long); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatal("oversized question must be rejected")
	}

	// No responder configured: surfaced as internal, not a panic.
	if _, err := s.Ask(ctx, 1, 1, "Cos'è una frazione?"); apperr.KindOf(err) != apperr.KindInternal {
		t.Fatal("missing responder must surface as internal")
	}
}

func TestReplyWireShape(t *testing.T) {
	r := newReply("Una frazione rappresenta una parte di un intero.", "Giulia")
	if r.BotName != BotName {
		t.Fatalf("bot name = %q, want %q", r.BotName, BotName)
	}
	if !r.Personalized {
		t.Fatal("reply with a known first name must be personalized")
	}
	if r := newReply("ciao", ""); r.Personalized {
		t.Fatal("reply without a name must not claim personalization")
	}

	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]interface{}
	_ = json.Unmarshal(raw, &fields)
	for _, key := range []string{"response", "bot_name", "personalized"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("reply JSON is missing %q", key)
		}
	}
}
