package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/sqlinline"
)

// OperationRepositoryPG implements domain.OperationRepository on PostgreSQL.
type OperationRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewOperationRepository creates a repository that runs marker-tagged statements through sql.
func NewOperationRepository(sql infra.SQLExecutor) *OperationRepositoryPG {
	return &OperationRepositoryPG{sql: sql}
}

// UpsertByOperationID performs the whole merge in one statement so concurrent
// webhooks for the same operation serialize on the unique key.
func (r *OperationRepositoryPG) UpsertByOperationID(ctx context.Context, operationID string, fields domain.OperationFields, policy domain.TransitionPolicy) (*domain.UpsertResult, error) {
	status := fields.EffectiveStatus()
	allowed := make([]string, 0, len(domain.AllStatuses))
	for _, s := range policy.Predecessors(status) {
		allowed = append(allowed, string(s))
	}

	row := r.sql.QueryRow(ctx, sqlinline.QUpsertOperation,
		operationID,
		deref(fields.OwnerID),
		deref(fields.Prompt),
		string(status),
		deref(fields.VideoURL),
		deref(fields.ImageURL),
		deref(fields.ErrorMessage),
		deref(fields.AspectRatio),
		deref(fields.Resolution),
		allowed,
		domain.DefaultWebhookPrompt,
	)

	var created bool
	op, err := scanOperation(row, &created)
	if err != nil {
		return nil, fmt.Errorf("upsert operation %s: %w", operationID, err)
	}
	return &domain.UpsertResult{
		Operation: op,
		Created:   created,
		Applied:   op.Status == status,
	}, nil
}

// FindByOperationID returns domain.ErrNotFound when no record exists.
func (r *OperationRepositoryPG) FindByOperationID(ctx context.Context, operationID string) (*domain.Operation, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectOperationByOperationID, operationID)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find operation %s: %w", operationID, err)
	}
	return op, nil
}

// ListByOwner fetches one page and the filtered total concurrently.
func (r *OperationRepositoryPG) ListByOwner(ctx context.Context, ownerID string, opts domain.ListOptions) (*domain.OperationPage, error) {
	if err := opts.Normalize(); err != nil {
		return nil, err
	}

	page := &domain.OperationPage{Limit: opts.Limit, Offset: opts.Offset}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.sql.Query(gctx, sqlinline.QListOperationsByOwner, ownerID, string(opts.Status), opts.Limit, opts.Offset)
		if err != nil {
			return fmt.Errorf("list operations: %w", err)
		}
		defer rows.Close()
		items := make([]domain.Operation, 0, opts.Limit)
		for rows.Next() {
			op, err := scanOperation(rows)
			if err != nil {
				return fmt.Errorf("scan operation: %w", err)
			}
			items = append(items, *op)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate operations: %w", err)
		}
		page.Items = items
		return nil
	})
	g.Go(func() error {
		if err := r.sql.QueryRow(gctx, sqlinline.QCountOperationsByOwner, ownerID, string(opts.Status)).Scan(&page.Total); err != nil {
			return fmt.Errorf("count operations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return page, nil
}

// AggregateStatusCounts returns per-status counts and the most recent record.
func (r *OperationRepositoryPG) AggregateStatusCounts(ctx context.Context, ownerID string) (*domain.OperationStats, error) {
	stats := domain.NewOperationStats()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.sql.Query(gctx, sqlinline.QCountOperationsByStatus, ownerID)
		if err != nil {
			return fmt.Errorf("count by status: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return fmt.Errorf("scan status count: %w", err)
			}
			stats.ByStatus[domain.OperationStatus(status)] = count
			stats.Total += count
		}
		return rows.Err()
	})
	g.Go(func() error {
		op, err := scanOperation(r.sql.QueryRow(gctx, sqlinline.QSelectLatestOperationByOwner, ownerID))
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("latest operation: %w", err)
		}
		stats.Latest = op
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// scanOperation reads the common column list. extra receives trailing columns.
func scanOperation(row pgx.Row, extra ...any) (*domain.Operation, error) {
	var op domain.Operation
	var status string
	dest := []any{
		&op.ID,
		&op.OperationID,
		&op.OwnerID,
		&op.Prompt,
		&status,
		&op.VideoURL,
		&op.ImageURL,
		&op.ErrorMessage,
		&op.AspectRatio,
		&op.Resolution,
		&op.CreatedAt,
		&op.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	op.Status = domain.OperationStatus(status)
	return &op, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ domain.OperationRepository = (*OperationRepositoryPG)(nil)
