package groups

import (
	"context"
	"testing"

	"github.com/djsoulspotti-ops/skajla/utils/apperr"
	"github.com/djsoulspotti-ops/skajla/utils/logging"
)

// Validation runs before any storage access, so a nil db is fine here.
func validationService() *Service {
	return NewService(nil, nil, nil, logging.Nop())
}

func TestCreateRejectsBadInput(t *testing.T) {
	s := validationService()
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"name too short", CreateInput{Name: "ab", Topic: "mat", TTLHours: 2}},
		{"topic too short", CreateInput{Name: "Ripasso", Topic: "m", TTLHours: 2}},
		{"zero ttl", CreateInput{Name: "Ripasso", Topic: "mat", TTLHours: 0}},
		{"ttl over a week", CreateInput{Name: "Ripasso", Topic: "mat", TTLHours: 169}},
		{"too many invitees", CreateInput{Name: "Ripasso", Topic: "mat", TTLHours: 2,
			InviteeIDs: make([]uint, MaxInvitees+1)}},
	}
	for _, tc := range cases {
		_, err := s.Create(ctx, 1, 1, tc.in)
		if apperr.KindOf(err) != apperr.KindInvalidInput {
			t.Errorf("%s: kind = %v, want invalid input", tc.name, apperr.KindOf(err))
		}
	}
}
