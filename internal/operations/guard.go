package operations

import (
	"context"
	"errors"
	"fmt"

	"gateway/internal/domain"
)

// Guard decides who may see operations and user-scoped data.
type Guard struct {
	users domain.UserRepository
}

func NewGuard(users domain.UserRepository) *Guard {
	return &Guard{users: users}
}

// CanRead allows an empty requester, the owner, and records owned by the
// system sentinel. Unowned records are visible only without a requester filter.
func (g *Guard) CanRead(requesterID string, op *domain.Operation) error {
	if requesterID == "" {
		return nil
	}
	owner := op.Owner()
	if owner == requesterID || owner == domain.SystemOwner {
		return nil
	}
	return domain.ErrAccessDenied
}

// RequireAdmin loads the requester and checks the admin role.
func (g *Guard) RequireAdmin(ctx context.Context, requesterID string) (*domain.User, error) {
	if requesterID == "" {
		return nil, domain.ErrUnauthorized
	}
	user, err := g.users.GetByID(ctx, requesterID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrAccessDenied
	}
	if err != nil {
		return nil, fmt.Errorf("load requester: %w", err)
	}
	if !user.IsAdmin() {
		return nil, domain.ErrAccessDenied
	}
	return user, nil
}

// RequireSelfOrAdmin lets a user act on their own resources and admins on anyone's.
func (g *Guard) RequireSelfOrAdmin(ctx context.Context, requesterID, targetID string) error {
	if requesterID == "" {
		return domain.ErrUnauthorized
	}
	if requesterID == targetID {
		return nil
	}
	_, err := g.RequireAdmin(ctx, requesterID)
	return err
}
