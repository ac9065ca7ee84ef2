// Package memory provides concurrency-safe in-memory repositories. They mirror
// the PostgreSQL adapters statement for statement and back the memory store
// driver and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"gateway/internal/domain"
)

// OperationRepository keeps operations keyed by external operation id.
type OperationRepository struct {
	mu  sync.RWMutex
	ops map[string]*domain.Operation
	now func() time.Time
}

func NewOperationRepository() *OperationRepository {
	return &OperationRepository{ops: make(map[string]*domain.Operation), now: time.Now}
}

// UpsertByOperationID holds the write lock for the whole merge.
func (r *OperationRepository) UpsertByOperationID(_ context.Context, operationID string, fields domain.OperationFields, policy domain.TransitionPolicy) (*domain.UpsertResult, error) {
	status := fields.EffectiveStatus()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	op, ok := r.ops[operationID]
	if !ok {
		op = &domain.Operation{
			ID:           uuid.NewString(),
			OperationID:  operationID,
			OwnerID:      nonEmpty(fields.OwnerID),
			Prompt:       domain.DefaultWebhookPrompt,
			Status:       status,
			VideoURL:     nonEmpty(fields.VideoURL),
			ImageURL:     nonEmpty(fields.ImageURL),
			AspectRatio:  nonEmpty(fields.AspectRatio),
			Resolution:   nonEmpty(fields.Resolution),
			CreatedAt:    now,
			UpdatedAt:    now,
			ErrorMessage: nil,
		}
		if p := nonEmpty(fields.Prompt); p != nil {
			op.Prompt = *p
		}
		if status == domain.StatusFailed {
			op.ErrorMessage = nonEmpty(fields.ErrorMessage)
		}
		r.ops[operationID] = op
		return &domain.UpsertResult{Operation: clone(op), Created: true, Applied: true}, nil
	}

	allowed := policy.Allows(op.Status, status)
	touched := false
	if op.OwnerID == nil && nonEmpty(fields.OwnerID) != nil {
		op.OwnerID = nonEmpty(fields.OwnerID)
		touched = true
	}
	if p := nonEmpty(fields.Prompt); p != nil && op.Prompt == domain.DefaultWebhookPrompt {
		op.Prompt = *p
		touched = true
	}
	if op.AspectRatio == nil {
		op.AspectRatio = nonEmpty(fields.AspectRatio)
	}
	if op.Resolution == nil {
		op.Resolution = nonEmpty(fields.Resolution)
	}
	if allowed {
		op.Status = status
		if v := nonEmpty(fields.VideoURL); v != nil {
			op.VideoURL = v
		}
		if v := nonEmpty(fields.ImageURL); v != nil {
			op.ImageURL = v
		}
		if status == domain.StatusFailed {
			if v := nonEmpty(fields.ErrorMessage); v != nil {
				op.ErrorMessage = v
			}
		} else {
			op.ErrorMessage = nil
		}
		touched = true
	}
	if touched {
		op.UpdatedAt = now
	}
	return &domain.UpsertResult{Operation: clone(op), Applied: allowed}, nil
}

func (r *OperationRepository) FindByOperationID(_ context.Context, operationID string) (*domain.Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	op, ok := r.ops[operationID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(op), nil
}

func (r *OperationRepository) ListByOwner(_ context.Context, ownerID string, opts domain.ListOptions) (*domain.OperationPage, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	matched := make([]domain.Operation, 0)
	for _, op := range r.ops {
		if op.Owner() != ownerID {
			continue
		}
		if opts.Status != "" && op.Status != opts.Status {
			continue
		}
		matched = append(matched, *op)
	}
	r.mu.RUnlock()

	sortNewestFirst(matched)
	page := &domain.OperationPage{Total: len(matched), Limit: opts.Limit, Offset: opts.Offset, Items: []domain.Operation{}}
	if opts.Offset < len(matched) {
		end := opts.Offset + opts.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[opts.Offset:end]
	}
	return page, nil
}

func (r *OperationRepository) AggregateStatusCounts(_ context.Context, ownerID string) (*domain.OperationStats, error) {
	stats := domain.NewOperationStats()

	r.mu.RLock()
	owned := make([]domain.Operation, 0)
	for _, op := range r.ops {
		if op.Owner() == ownerID {
			owned = append(owned, *op)
		}
	}
	r.mu.RUnlock()

	for _, op := range owned {
		stats.ByStatus[op.Status]++
		stats.Total++
	}
	if len(owned) > 0 {
		sortNewestFirst(owned)
		stats.Latest = &owned[0]
	}
	return &stats, nil
}

func sortNewestFirst(ops []domain.Operation) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].CreatedAt.Equal(ops[j].CreatedAt) {
			return ops[i].OperationID > ops[j].OperationID
		}
		return ops[i].CreatedAt.After(ops[j].CreatedAt)
	})
}

func clone(op *domain.Operation) *domain.Operation {
	c := *op
	return &c
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

var _ domain.OperationRepository = (*OperationRepository)(nil)
