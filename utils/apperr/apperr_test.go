package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfWrappedError(t *testing.T) {
	inner := TransientStore("write failed", errors.New("connection reset"))
	wrapped := fmt.Errorf("award path: %w", inner)

	if KindOf(wrapped) != KindTransientStore {
		t.Fatal("kind should survive wrapping")
	}
	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors default to internal")
	}
}

func TestAsReturnsDomainError(t *testing.T) {
	e := RateLimited("slow down", 42)
	got := As(fmt.Errorf("dispatch: %w", e))
	if got == nil {
		t.Fatal("As should find the domain error")
	}
	if got.Code != "RATE_LIMIT_EXCEEDED" || got.RetryAfter != 42 {
		t.Fatalf("got %+v", got)
	}
	if As(errors.New("plain")) != nil {
		t.Fatal("plain errors have no domain error")
	}
}

func TestRecoverable(t *testing.T) {
	if !Recoverable(TransientStore("down", nil)) {
		t.Fatal("transient store errors are recoverable")
	}
	if !Recoverable(RateLimited("later", 5)) {
		t.Fatal("rate limits are recoverable")
	}
	if Recoverable(InvalidInput("bad")) {
		t.Fatal("validation errors are not recoverable")
	}
	if Recoverable(TenantViolation("cross-tenant")) {
		t.Fatal("tenant violations are not recoverable")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	e := Internal("boom", cause)
	if !errors.Is(e, cause) {
		t.Fatal("errors.Is should reach the cause")
	}
}
