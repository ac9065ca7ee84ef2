package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"gateway/internal/domain"
	"gateway/internal/operations"
	"gateway/internal/sqlinline"
)

func TestUserRepositoryNonUUIDIsNotFound(t *testing.T) {
	sql := newStubSQL()
	invalid := &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}
	sql.errs[sqlinline.QSelectUserByID] = invalid
	sql.errs[sqlinline.QUpdateUserRole] = invalid
	repo := NewUserRepository(sql)
	ctx := context.Background()

	for _, id := range []string{"google-oauth2|123", "", "u1"} {
		if _, err := repo.GetByID(ctx, id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("GetByID(%q) err = %v, want ErrNotFound", id, err)
		}
		if _, err := repo.SetRole(ctx, id, domain.UserRoleAdmin); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("SetRole(%q) err = %v, want ErrNotFound", id, err)
		}
	}
	if n := len(sql.callsFor(sqlinline.QSelectUserByID)) + len(sql.callsFor(sqlinline.QUpdateUserRole)); n != 0 {
		t.Fatalf("non-UUID ids reached the database %d times", n)
	}
}

func TestUserRepositoryGetByIDScansRow(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	id := "7d7a1c52-4b1e-4a53-9a57-0c5f2e1d3b90"
	sql := newStubSQL()
	sql.rows[sqlinline.QSelectUserByID] = [][]any{{id, "ana@example.com", "Ana", "admin", ts, ts}}
	repo := NewUserRepository(sql)

	u, err := repo.GetByID(context.Background(), "7D7A1C52-4B1E-4A53-9A57-0C5F2E1D3B90")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if u.ID != id || !u.IsAdmin() {
		t.Fatalf("user = %+v", u)
	}
	if got := sql.callsFor(sqlinline.QSelectUserByID)[0].args[0]; got != id {
		t.Fatalf("query arg = %v, want canonical %s", got, id)
	}
}

func TestGuardDeniesNonUUIDRequester(t *testing.T) {
	sql := newStubSQL()
	sql.errs[sqlinline.QSelectUserByID] = &pgconn.PgError{Code: "22P02"}
	guard := operations.NewGuard(NewUserRepository(sql))

	err := guard.RequireSelfOrAdmin(context.Background(), "google-oauth2|123", "7d7a1c52-4b1e-4a53-9a57-0c5f2e1d3b90")
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("RequireSelfOrAdmin err = %v, want ErrAccessDenied", err)
	}
}
