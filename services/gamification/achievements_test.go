package gamification

import (
	"testing"

	"github.com/djsoulspotti-ops/skajla/model"
)

func TestEvalRulesAndSemantics(t *testing.T) {
	p := &model.GamificationProfile{
		Level:        12,
		MessagesSent: 500,
		QuizzesTaken: 3,
	}

	both := []model.PredicateRule{
		{Counter: "messages_sent", Op: "gte", Value: 500},
		{Counter: "level", Op: "gte", Value: 10},
	}
	if !evalRules(p, both) {
		t.Fatal("both rules hold, expected unlock")
	}

	oneShort := []model.PredicateRule{
		{Counter: "messages_sent", Op: "gte", Value: 500},
		{Counter: "quizzes_taken", Op: "gte", Value: 5},
	}
	if evalRules(p, oneShort) {
		t.Fatal("one failing rule must block the unlock")
	}
}

func TestEvalRulesOperators(t *testing.T) {
	p := &model.GamificationProfile{Coins: 100}
	cases := []struct {
		op   string
		val  int64
		want bool
	}{
		{"gte", 100, true},
		{"gt", 100, false},
		{"eq", 100, true},
		{"lte", 100, true},
		{"lt", 100, false},
		{"between", 100, false}, // unknown operator never unlocks
	}
	for _, tc := range cases {
		rules := []model.PredicateRule{{Counter: "coins", Op: tc.op, Value: tc.val}}
		if got := evalRules(p, rules); got != tc.want {
			t.Errorf("op %q against 100: got %v, want %v", tc.op, got, tc.want)
		}
	}
}

func TestEvalRulesEmptyNeverUnlocks(t *testing.T) {
	if evalRules(&model.GamificationProfile{}, nil) {
		t.Fatal("empty rule set must not unlock")
	}
}

func TestCounterValueUnknownIsZero(t *testing.T) {
	p := &model.GamificationProfile{TotalXP: 999}
	if got := counterValue(p, "no_such_counter"); got != 0 {
		t.Fatalf("unknown counter = %d, want 0", got)
	}
	if got := counterValue(p, "total_xp"); got != 999 {
		t.Fatalf("total_xp = %d", got)
	}
}

func TestBumpCounter(t *testing.T) {
	p := &model.GamificationProfile{}
	if name := bumpCounter(p, ActionMessageSent); name != "messages_sent" || p.MessagesSent != 1 {
		t.Fatalf("bump message_sent: name=%q sent=%d", name, p.MessagesSent)
	}
	if name := bumpCounter(p, ActionAICorrectAnswer); name != "ai_interactions" || p.AIInteractions != 1 {
		t.Fatalf("bump ai_correct_answer: name=%q interactions=%d", name, p.AIInteractions)
	}
	if name := bumpCounter(p, ActionQuizCompleted); name != "quizzes_taken" || p.QuizzesTaken != 1 {
		t.Fatalf("bump quiz_completed: name=%q quizzes=%d", name, p.QuizzesTaken)
	}
	if name := bumpCounter(p, ActionPeerHelped); name != "peers_helped" || p.PeersHelped != 1 {
		t.Fatalf("bump peer_helped: name=%q helped=%d", name, p.PeersHelped)
	}
	if name := bumpCounter(p, ActionReactionReceived); name != "reactions_received" || p.ReactionsReceived != 1 {
		t.Fatalf("bump reaction_received: name=%q reactions=%d", name, p.ReactionsReceived)
	}
	if name := bumpCounter(p, ActionLoginDaily); name != "" {
		t.Fatalf("login_daily should not bump a counter, got %q", name)
	}
}
