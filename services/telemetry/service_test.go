package telemetry

import (
	"context"
	"testing"

	"github.com/djsoulspotti-ops/skajla/utils/apperr"
)

func TestTrackRequiresIDAndName(t *testing.T) {
	s := NewService(nil)

	err := s.Track(context.Background(), 1, 1, EventInput{Name: "page_view"})
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("missing id: kind = %v", apperr.KindOf(err))
	}

	err = s.Track(context.Background(), 1, 1, EventInput{ClientEventID: "evt-1"})
	if apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatalf("missing name: kind = %v", apperr.KindOf(err))
	}
}

func TestBatchSizeLimits(t *testing.T) {
	s := NewService(nil)

	if _, err := s.Batch(context.Background(), 1, 1, nil); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatal("empty batch must be rejected")
	}

	big := make([]EventInput, maxBatchSize+1)
	if _, err := s.Batch(context.Background(), 1, 1, big); apperr.KindOf(err) != apperr.KindInvalidInput {
		t.Fatal("oversized batch must be rejected")
	}
}
