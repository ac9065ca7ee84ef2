package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/sqlinline"
)

// WebhookRepositoryPG implements domain.WebhookRepository backed by PostgreSQL.
type WebhookRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewWebhookRepository(sql infra.SQLExecutor) *WebhookRepositoryPG {
	return &WebhookRepositoryPG{sql: sql}
}

func (r *WebhookRepositoryPG) List(ctx context.Context, ownerID string) ([]domain.WebhookRegistration, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListWebhooks, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()
	items := []domain.WebhookRegistration{}
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		items = append(items, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhooks: %w", err)
	}
	return items, nil
}

func (r *WebhookRepositoryPG) Get(ctx context.Context, id string) (*domain.WebhookRegistration, error) {
	return scanWebhook(r.sql.QueryRow(ctx, sqlinline.QSelectWebhookByID, id))
}

func (r *WebhookRepositoryPG) Create(ctx context.Context, w *domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertWebhook, w.OwnerID, w.Name, w.URL, w.Events, w.Active)
	created, err := scanWebhook(row)
	if err != nil {
		return nil, fmt.Errorf("insert webhook: %w", err)
	}
	return created, nil
}

// Update replaces the mutable fields; a missing id yields domain.ErrNotFound.
func (r *WebhookRepositoryPG) Update(ctx context.Context, w *domain.WebhookRegistration) (*domain.WebhookRegistration, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QUpdateWebhook, w.ID, w.Name, w.URL, w.Events, w.Active)
	return scanWebhook(row)
}

func (r *WebhookRepositoryPG) Delete(ctx context.Context, id string) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QDeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *WebhookRepositoryPG) MarkExecuted(ctx context.Context, event string, at time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QMarkWebhooksExecuted, event, at)
	if err != nil {
		return 0, fmt.Errorf("mark webhooks executed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanWebhook(row pgx.Row) (*domain.WebhookRegistration, error) {
	var w domain.WebhookRegistration
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Name, &w.URL, &w.Events, &w.Active, &w.LastExecutedAt, &w.CreatedAt, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if w.Events == nil {
		w.Events = []string{}
	}
	return &w, nil
}

var _ domain.WebhookRepository = (*WebhookRepositoryPG)(nil)
