package domain

import (
	"errors"
	"testing"
)

func TestTransitionPolicyAllows(t *testing.T) {
	tests := []struct {
		name   string
		policy TransitionPolicy
		from   OperationStatus
		to     OperationStatus
		want   bool
	}{
		{"pending to processing", TransitionsStrict, StatusPending, StatusProcessing, true},
		{"pending to completed", TransitionsStrict, StatusPending, StatusCompleted, true},
		{"processing to failed", TransitionsStrict, StatusProcessing, StatusFailed, true},
		{"completed replay", TransitionsStrict, StatusCompleted, StatusCompleted, true},
		{"failed replay", TransitionsStrict, StatusFailed, StatusFailed, true},
		{"completed to processing", TransitionsStrict, StatusCompleted, StatusProcessing, false},
		{"completed to failed", TransitionsStrict, StatusCompleted, StatusFailed, false},
		{"failed to completed", TransitionsStrict, StatusFailed, StatusCompleted, false},
		{"processing to pending", TransitionsStrict, StatusProcessing, StatusPending, false},
		{"permissive regression", TransitionsPermissive, StatusCompleted, StatusProcessing, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.Allows(tc.from, tc.to); got != tc.want {
				t.Fatalf("Allows(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
		})
	}
}

func TestParseTransitionPolicy(t *testing.T) {
	if p, err := ParseTransitionPolicy(""); err != nil || p != TransitionsStrict {
		t.Fatalf("ParseTransitionPolicy(\"\") = %q, %v; want strict", p, err)
	}
	if p, err := ParseTransitionPolicy("Permissive"); err != nil || p != TransitionsPermissive {
		t.Fatalf("ParseTransitionPolicy(Permissive) = %q, %v", p, err)
	}
	if _, err := ParseTransitionPolicy("loose"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestParseOperationStatus(t *testing.T) {
	if s, err := ParseOperationStatus(" COMPLETED "); err != nil || s != StatusCompleted {
		t.Fatalf("ParseOperationStatus = %q, %v", s, err)
	}
	_, err := ParseOperationStatus("done")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}
}

func TestListOptionsNormalize(t *testing.T) {
	opts := ListOptions{}
	if err := opts.Normalize(); err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if opts.Limit != DefaultListLimit {
		t.Fatalf("Limit = %d, want %d", opts.Limit, DefaultListLimit)
	}

	opts = ListOptions{Limit: MaxListLimit}
	if err := opts.Normalize(); err != nil {
		t.Fatalf("limit at maximum rejected: %v", err)
	}

	opts = ListOptions{Limit: MaxListLimit + 1}
	if err := opts.Normalize(); !IsValidation(err) {
		t.Fatalf("expected validation error for limit %d, got %v", opts.Limit, err)
	}

	opts = ListOptions{Offset: -1}
	if err := opts.Normalize(); !IsValidation(err) {
		t.Fatalf("expected validation error for negative offset, got %v", err)
	}
}

func TestOperationPagePagination(t *testing.T) {
	page := OperationPage{Items: make([]Operation, 10), Total: 25, Limit: 10, Offset: 10}
	if !page.HasMore() {
		t.Fatalf("HasMore = false, want true")
	}
	if next := page.NextOffset(); next == nil || *next != 20 {
		t.Fatalf("NextOffset = %v, want 20", next)
	}

	last := OperationPage{Items: make([]Operation, 5), Total: 25, Limit: 10, Offset: 20}
	if last.HasMore() || last.NextOffset() != nil {
		t.Fatalf("last page reports more results")
	}
}

func TestOperationCompletedAt(t *testing.T) {
	op := Operation{Status: StatusProcessing}
	if op.CompletedAt() != nil {
		t.Fatalf("CompletedAt set for non-terminal status")
	}
	op.Status = StatusFailed
	if op.CompletedAt() == nil {
		t.Fatalf("CompletedAt nil for terminal status")
	}
}
