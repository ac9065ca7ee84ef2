package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"gateway/internal/domain"
)

type webhookRegistrationRequest struct {
	Name   string   `json:"name"`
	URL    string   `json:"url"`
	Events []string `json:"events"`
	Active *bool    `json:"active"`
}

type webhookRegistrationDTO struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"ownerId"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	Events         []string   `json:"events"`
	Active         bool       `json:"active"`
	LastExecutedAt *time.Time `json:"lastExecutedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func toWebhookDTO(wh *domain.WebhookRegistration) webhookRegistrationDTO {
	events := wh.Events
	if events == nil {
		events = []string{}
	}
	return webhookRegistrationDTO{
		ID:             wh.ID,
		OwnerID:        wh.OwnerID,
		Name:           wh.Name,
		URL:            wh.URL,
		Events:         events,
		Active:         wh.Active,
		LastExecutedAt: utcPtr(wh.LastExecutedAt),
		CreatedAt:      wh.CreatedAt.UTC(),
		UpdatedAt:      wh.UpdatedAt.UTC(),
	}
}

// ListWebhooks returns the caller's registrations, or all of them for admins.
func (a *App) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	owner := userID
	if _, err := a.Guard.RequireAdmin(r.Context(), userID); err == nil {
		owner = ""
	}
	items, err := a.Webhooks.List(r.Context(), owner)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]webhookRegistrationDTO, 0, len(items))
	for i := range items {
		out = append(out, toWebhookDTO(&items[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"data": out})
}

// CreateWebhook registers a webhook owned by the caller.
func (a *App) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req webhookRegistrationRequest
	if !a.decode(w, r, &req) {
		return
	}
	wh := &domain.WebhookRegistration{OwnerID: userID, Name: req.Name, URL: req.URL, Events: req.Events, Active: true}
	if req.Active != nil {
		wh.Active = *req.Active
	}
	if err := wh.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	created, err := a.Webhooks.Create(r.Context(), wh)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.Logger.Info().Str("webhook_id", created.ID).Str("owner_id", userID).Msg("webhook registered")
	a.json(w, http.StatusCreated, toWebhookDTO(created))
}

// loadOwnedWebhook fetches id and checks the caller owns it or is an admin.
func (a *App) loadOwnedWebhook(r *http.Request, id string) (*domain.WebhookRegistration, error) {
	wh, err := a.Webhooks.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if err := a.Guard.RequireSelfOrAdmin(r.Context(), a.currentUserID(r), wh.OwnerID); err != nil {
		return nil, err
	}
	return wh, nil
}

// UpdateWebhook merges the supplied fields into a registration.
func (a *App) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	wh, err := a.loadOwnedWebhook(r, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req webhookRegistrationRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Name != "" {
		wh.Name = req.Name
	}
	if req.URL != "" {
		wh.URL = req.URL
	}
	if req.Events != nil {
		wh.Events = req.Events
	}
	if req.Active != nil {
		wh.Active = *req.Active
	}
	if err := wh.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	updated, err := a.Webhooks.Update(r.Context(), wh)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toWebhookDTO(updated))
}

// DeleteWebhook removes a registration.
func (a *App) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.loadOwnedWebhook(r, id); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Webhooks.Delete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
