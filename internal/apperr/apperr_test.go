package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := Validation("bad phone")
	wrapped := fmt.Errorf("parse line: %w", base)

	if got := KindOf(wrapped); got != KindValidation {
		t.Fatalf("KindOf(wrapped) = %s, want validation", got)
	}
	if !IsValidation(wrapped) {
		t.Fatal("expected IsValidation to see through fmt.Errorf wrapping")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Fatal("plain errors must be KindUnknown")
	}
}

func TestUpstreamKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("ledger append failed", cause).WithOp("ledger")

	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
	if got, want := err.Error(), "ledger: ledger append failed: connection refused"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !IsUpstream(err) {
		t.Fatal("expected upstream kind")
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation with usage", Validation("Wrong format.").WithUsage("Example: /info 0631234567, 7"), "Wrong format.\nExample: /info 0631234567, 7"},
		{"not found", NotFound("Customer not found in CRM."), "Customer not found in CRM."},
		{"unclassified", errors.New("boom"), "Something went wrong, please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Fatalf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
