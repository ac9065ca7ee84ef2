package domain

import (
	"context"
	"time"
)

// OperationRepository persists operation records keyed by external operation id.
type OperationRepository interface {
	// UpsertByOperationID atomically creates or merges the record for
	// operationID. The policy decides whether the stored status may change.
	UpsertByOperationID(ctx context.Context, operationID string, fields OperationFields, policy TransitionPolicy) (*UpsertResult, error)
	FindByOperationID(ctx context.Context, operationID string) (*Operation, error)
	ListByOwner(ctx context.Context, ownerID string, opts ListOptions) (*OperationPage, error)
	AggregateStatusCounts(ctx context.Context, ownerID string) (*OperationStats, error)
}

// UserRepository defines access methods for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	SetRole(ctx context.Context, id string, role UserRole) (*User, error)
}

// WebhookRepository persists webhook registrations.
type WebhookRepository interface {
	// List returns registrations of ownerID, or all of them when ownerID is empty.
	List(ctx context.Context, ownerID string) ([]WebhookRegistration, error)
	Get(ctx context.Context, id string) (*WebhookRegistration, error)
	Create(ctx context.Context, w *WebhookRegistration) (*WebhookRegistration, error)
	Update(ctx context.Context, w *WebhookRegistration) (*WebhookRegistration, error)
	Delete(ctx context.Context, id string) error
	// MarkExecuted stamps active registrations subscribed to event and reports how many matched.
	MarkExecuted(ctx context.Context, event string, at time.Time) (int, error)
}
