package apperror_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sangkips/coopmart-api/pkg/apperror"
)

func TestConstructorsSetKindAndStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *apperror.AppError
		kind apperror.Kind
		code int
	}{
		{"validation", apperror.NewValidationError("bad qty"), apperror.KindValidation, http.StatusUnprocessableEntity},
		{"not found", apperror.NewNotFoundError("Member"), apperror.KindNotFound, http.StatusNotFound},
		{"state", apperror.NewStateError("order is not pending"), apperror.KindState, http.StatusConflict},
		{"limit", apperror.NewLimitExceededError("over limit"), apperror.KindLimitExceeded, http.StatusUnprocessableEntity},
		{"conflict", apperror.NewConflictError("duplicate"), apperror.KindConflict, http.StatusConflict},
		{"throttled", apperror.NewUpstreamThrottledError("aggregation", 8), apperror.KindUpstreamThrottled, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
			if tt.err.Code != tt.code {
				t.Errorf("code = %d, want %d", tt.err.Code, tt.code)
			}
		})
	}
}

func TestIsKindThroughWrapping(t *testing.T) {
	base := apperror.NewStateError("order is not pending")
	wrapped := fmt.Errorf("post order: %w", base)

	if !apperror.IsKind(wrapped, apperror.KindState) {
		t.Fatal("expected wrapped error to match state kind")
	}
	if apperror.IsKind(wrapped, apperror.KindConflict) {
		t.Fatal("wrapped state error must not match conflict kind")
	}
}

func TestWithCauseKeepsOriginalUntouched(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	base := apperror.NewConflictError("prices import failed")
	withCause := base.WithCause(cause)

	if !errors.Is(withCause, cause) {
		t.Fatal("expected cause to be reachable via errors.Is")
	}
	if base.Unwrap() != nil {
		t.Fatal("base error must not be mutated")
	}
	if withCause.Message != base.Message {
		t.Errorf("message = %q, want %q", withCause.Message, base.Message)
	}
}

func TestGetAppErrorFallsBackToInternal(t *testing.T) {
	appErr := apperror.GetAppError(errors.New("boom"))
	if appErr.Code != http.StatusInternalServerError || appErr.Kind != apperror.KindInternal {
		t.Fatalf("got %d/%s, want 500/internal", appErr.Code, appErr.Kind)
	}
}
