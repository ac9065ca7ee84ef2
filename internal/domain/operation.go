package domain

import (
	"fmt"
	"strings"
	"time"
)

// OperationStatus enumerates the lifecycle states of a video generation operation.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusProcessing OperationStatus = "processing"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []OperationStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// SystemOwner marks operations readable by any requester.
const SystemOwner = "system"

// DefaultWebhookPrompt is stored when a webhook creates a record without a prompt.
const DefaultWebhookPrompt = "Generated via webhook"

// ParseOperationStatus normalizes s and rejects values outside the lifecycle vocabulary.
func ParseOperationStatus(s string) (OperationStatus, error) {
	status := OperationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", NewValidationError("status", fmt.Sprintf("unsupported status %q", s))
	}
	return status, nil
}

func (s OperationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further lifecycle progress is expected.
func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Operation is the durable record of one external generation job.
type Operation struct {
	ID           string
	OperationID  string
	OwnerID      *string
	Prompt       string
	Status       OperationStatus
	VideoURL     *string
	ImageURL     *string
	ErrorMessage *string
	AspectRatio  *string
	Resolution   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Owner returns the owner id or an empty string for unowned records.
func (o Operation) Owner() string {
	if o.OwnerID == nil {
		return ""
	}
	return *o.OwnerID
}

// CompletedAt is the last update time of a terminal operation.
func (o Operation) CompletedAt() *time.Time {
	if !o.Status.Terminal() {
		return nil
	}
	t := o.UpdatedAt
	return &t
}

// OperationFields carries the values an upsert supplies. Nil pointers leave
// the stored value untouched; an empty Status means completed.
type OperationFields struct {
	OwnerID      *string
	Prompt       *string
	Status       OperationStatus
	VideoURL     *string
	ImageURL     *string
	ErrorMessage *string
	AspectRatio  *string
	Resolution   *string
}

// EffectiveStatus applies the completed default.
func (f OperationFields) EffectiveStatus() OperationStatus {
	if f.Status == "" {
		return StatusCompleted
	}
	return f.Status
}

// UpsertResult reports the stored record after an upsert. Applied is false
// when the transition policy kept the previous status.
type UpsertResult struct {
	Operation *Operation
	Created   bool
	Applied   bool
}

// TransitionPolicy decides which stored statuses may be replaced by an incoming one.
type TransitionPolicy string

const (
	TransitionsStrict     TransitionPolicy = "strict"
	TransitionsPermissive TransitionPolicy = "permissive"
)

// ParseTransitionPolicy defaults to strict for empty input.
func ParseTransitionPolicy(s string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", TransitionsStrict:
		return TransitionsStrict, nil
	case TransitionsPermissive:
		return TransitionsPermissive, nil
	}
	return "", fmt.Errorf("unsupported transition policy %q", s)
}

// strictPredecessors maps a target status to the stored statuses it may replace.
// Self transitions are present so replays stay idempotent.
var strictPredecessors = map[OperationStatus][]OperationStatus{
	StatusPending:    {StatusPending},
	StatusProcessing: {StatusPending, StatusProcessing},
	StatusCompleted:  {StatusPending, StatusProcessing, StatusCompleted},
	StatusFailed:     {StatusPending, StatusProcessing, StatusFailed},
}

// Predecessors returns the stored statuses that may move to target.
func (p TransitionPolicy) Predecessors(target OperationStatus) []OperationStatus {
	if p == TransitionsPermissive {
		return AllStatuses
	}
	return strictPredecessors[target]
}

// Allows reports whether a record in from may move to to.
func (p TransitionPolicy) Allows(from, to OperationStatus) bool {
	for _, s := range p.Predecessors(to) {
		if s == from {
			return true
		}
	}
	return false
}

const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ListOptions filters and pages an owner's operation history.
type ListOptions struct {
	Status OperationStatus
	Limit  int
	Offset int
}

// Normalize applies defaults and rejects out-of-range paging.
func (o *ListOptions) Normalize() error {
	if o.Limit > MaxListLimit {
		return NewValidationError("limit", fmt.Sprintf("limit cannot exceed %d", MaxListLimit))
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Offset < 0 {
		return NewValidationError("offset", "offset cannot be negative")
	}
	if o.Status != "" && !o.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unsupported status %q", o.Status))
	}
	return nil
}

// OperationPage is one page of an owner's history, newest first.
type OperationPage struct {
	Items  []Operation
	Total  int
	Limit  int
	Offset int
}

func (p OperationPage) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}

// NextOffset is nil on the last page.
func (p OperationPage) NextOffset() *int {
	if !p.HasMore() {
		return nil
	}
	next := p.Offset + p.Limit
	return &next
}

// OperationStats aggregates an owner's operations by status.
type OperationStats struct {
	Total    int
	ByStatus map[OperationStatus]int
	Latest   *Operation
}

// NewOperationStats returns stats with every status key present.
func NewOperationStats() OperationStats {
	by := make(map[OperationStatus]int, len(AllStatuses))
	for _, s := range AllStatuses {
		by[s] = 0
	}
	return OperationStats{ByStatus: by}
}
