package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gateway/internal/domain"
)

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Me returns the caller's profile.
func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	u, err := a.Users.GetByID(r.Context(), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, userDTO{ID: u.ID, Email: u.Email, Name: u.Name, Role: string(u.Role), CreatedAt: u.CreatedAt.UTC()})
}

type paginationDTO struct {
	Total      int  `json:"total"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"hasMore"`
	NextOffset *int `json:"nextOffset"`
}

type operationListResponse struct {
	Data       []operationDTO `json:"data"`
	Pagination paginationDTO  `json:"pagination"`
}

// ListUserOperations pages a user's operation history, newest first.
func (a *App) ListUserOperations(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if err := a.Guard.RequireSelfOrAdmin(r.Context(), a.currentUserID(r), targetID); err != nil {
		a.fail(w, r, err)
		return
	}
	opts, err := parseListOptions(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	page, err := a.Operations.ListByOwner(r.Context(), targetID, opts)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items := make([]operationDTO, 0, len(page.Items))
	for _, op := range page.Items {
		items = append(items, toOperationDTO(op))
	}
	a.json(w, http.StatusOK, operationListResponse{
		Data: items,
		Pagination: paginationDTO{
			Total:      page.Total,
			Limit:      page.Limit,
			Offset:     page.Offset,
			HasMore:    page.HasMore(),
			NextOffset: page.NextOffset(),
		},
	})
}

func parseListOptions(r *http.Request) (domain.ListOptions, error) {
	q := r.URL.Query()
	var opts domain.ListOptions
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		status, err := domain.ParseOperationStatus(v)
		if err != nil {
			return opts, err
		}
		opts.Status = status
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.NewValidationError("limit", "limit must be an integer")
		}
		if n <= 0 {
			return opts, domain.NewValidationError("limit", "limit must be positive")
		}
		opts.Limit = n
	}
	if v := strings.TrimSpace(q.Get("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, domain.NewValidationError("offset", "offset must be an integer")
		}
		opts.Offset = n
	}
	return opts, opts.Normalize()
}

type statsResponse struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"byStatus"`
	LatestOperation *operationDTO  `json:"latestOperation"`
}

// UserOperationStats aggregates a user's operations by status.
func (a *App) UserOperationStats(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if err := a.Guard.RequireSelfOrAdmin(r.Context(), a.currentUserID(r), targetID); err != nil {
		a.fail(w, r, err)
		return
	}
	stats, err := a.Operations.AggregateStatusCounts(r.Context(), targetID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := statsResponse{Total: stats.Total, ByStatus: make(map[string]int, len(stats.ByStatus))}
	for status, n := range stats.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	if stats.Latest != nil {
		dto := toOperationDTO(*stats.Latest)
		resp.LatestOperation = &dto
	}
	a.json(w, http.StatusOK, resp)
}
