package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestMetadataForCheckoutCodes(t *testing.T) {
	cases := map[Code]struct {
		status    int
		retryable bool
	}{
		CodeInsufficientStock:   {status: http.StatusConflict},
		CodeTotalMismatch:       {status: http.StatusConflict},
		CodePaymentNotConfirmed: {status: http.StatusPaymentRequired, retryable: true},
		CodeIdempotency:         {status: http.StatusConflict},
		CodeRateLimit:           {status: http.StatusTooManyRequests},
		CodeStateConflict:       {status: http.StatusUnprocessableEntity},
		CodeDependency:          {status: http.StatusServiceUnavailable, retryable: true},
	}

	for code, want := range cases {
		meta := MetadataFor(code)
		if meta.HTTPStatus != want.status || meta.Retryable != want.retryable {
			t.Fatalf("%s: got status=%d retryable=%v, want status=%d retryable=%v",
				code, meta.HTTPStatus, meta.Retryable, want.status, want.retryable)
		}
	}
}

func TestEveryCodeRendersClientSafely(t *testing.T) {
	for code, meta := range metadataByCode {
		if meta.HTTPStatus < http.StatusBadRequest {
			t.Fatalf("%s maps to non-error status %d", code, meta.HTTPStatus)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("%s has no public message", code)
		}
	}
	if MetadataFor("SOMETHING_UNKNOWN") != MetadataFor(CodeInternal) {
		t.Fatalf("unknown codes should render as internal errors")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Newf(CodeValidation, "line %d: quantity must be positive", 2)
	if got := err.Error(); got != "VALIDATION_ERROR: line 2: quantity must be positive" {
		t.Fatalf("unexpected message %q", got)
	}
	if err.Details() != nil {
		t.Fatalf("details should be nil by default")
	}
	if err.WithDetails(map[string]any{"line": 2}).Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "create payment intent")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if got := wrapped.Error(); got != "DEPENDENCY_ERROR: create payment intent: connection reset" {
		t.Fatalf("unexpected message %q", got)
	}
	if Wrap(CodeConflict, nil, "no cause").Unwrap() != nil {
		t.Fatalf("wrapping nil should not produce a cause")
	}

	var nilErr *Error
	if nilErr.Code() != CodeInternal || nilErr.Message() != "" || nilErr.Error() != "" {
		t.Fatalf("nil receiver should be safe")
	}
	if got := As(fmt.Errorf("settle: %w", New(CodeForbidden, "no entry"))); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestHasCodeFollowsWrappedChain(t *testing.T) {
	inner := New(CodeInsufficientStock, "product out of stock").WithDetails(map[string]any{"available": 1})
	outer := fmt.Errorf("reserve: %w", inner)

	if !HasCode(outer, CodeInsufficientStock) {
		t.Fatalf("expected wrapped error to carry insufficient stock code")
	}
	if HasCode(outer, CodeValidation) {
		t.Fatalf("unexpected validation code match")
	}
	if HasCode(nil, CodeValidation) {
		t.Fatalf("nil error must not match")
	}
}

func TestHasCodeSeesInnerCodeUnderOuterWrap(t *testing.T) {
	inner := New(CodeInsufficientStock, "sold out")
	outer := Wrap(CodeDependency, inner, "settle")

	if !HasCode(outer, CodeInsufficientStock) {
		t.Fatalf("expected inner code to be visible")
	}
	if CodeOf(outer) != CodeDependency {
		t.Fatalf("expected outermost code, got %s", CodeOf(outer))
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatalf("nil must not be retryable")
	}
	if !IsRetryable(stdErrors.New("plain")) {
		t.Fatalf("untyped errors count as internal")
	}
	if IsRetryable(New(CodeTotalMismatch, "mismatch")) {
		t.Fatalf("total mismatch is terminal")
	}
	if !IsRetryable(fmt.Errorf("confirm: %w", New(CodePaymentNotConfirmed, "pending"))) {
		t.Fatalf("payment not confirmed should be retryable")
	}
}

func TestDumpCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_provider_reference", TableName: "payments"}
	d := Dump(Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create payment"))

	if d.Code != CodeConflict || d.Retryable {
		t.Fatalf("unexpected classification %+v", d)
	}
	if d.PGCode != "23505" || d.PGConstraint != "ux_payments_provider_reference" || d.PGTable != "payments" {
		t.Fatalf("postgres fields not captured: %+v", d)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d", len(d.Chain))
	}

	pqDump := Dump(&pq.Error{Code: "40001", Message: "could not serialize"})
	if pqDump.PGCode != "40001" || pqDump.PGMessage != "could not serialize" {
		t.Fatalf("pq fields not captured: %+v", pqDump)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil dump should be empty")
	}
}
