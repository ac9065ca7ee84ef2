package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"gateway/internal/domain"
	"gateway/internal/middleware"
	"gateway/internal/operations"
)

type createOperationRequest struct {
	Prompt         string `json:"prompt"`
	ImageURL       string `json:"imageUrl"`
	ImageData      string `json:"imageData"`
	ContentType    string `json:"contentType"`
	AspectRatio    string `json:"aspectRatio"`
	Resolution     string `json:"resolution"`
	NegativePrompt string `json:"negativePrompt"`
	Model          string `json:"model"`
}

type createOperationResponse struct {
	OperationID  string `json:"operationId"`
	Status       string `json:"status"`
	ImageURLUsed string `json:"imageUrlUsed,omitempty"`
}

// CreateOperation starts a video generation job for the caller.
func (a *App) CreateOperation(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req createOperationRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Initiator.Initiate(r.Context(), operations.InitiateRequest{
		OwnerID:        userID,
		Prompt:         req.Prompt,
		ImageURL:       req.ImageURL,
		ImageData:      req.ImageData,
		ContentType:    req.ContentType,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, createOperationResponse{
		OperationID:  res.OperationID,
		Status:       string(res.Status),
		ImageURLUsed: res.ImageURLUsed,
	})
}

// webhookRequest accepts both the documented field names and the ones the
// generation service has historically sent.
type webhookRequest struct {
	OperationID  string  `json:"operationId"`
	Status       string  `json:"status"`
	VideoURL     *string `json:"videoUrl"`
	ImageURL     *string `json:"imageUrl"`
	ErrorMessage *string `json:"errorMessage"`
	Message      *string `json:"message"`
	Prompt       *string `json:"prompt"`
	OwnerID      *string `json:"ownerId"`
	UserID       *string `json:"userId"`
}

func (req webhookRequest) event() operations.WebhookEvent {
	ev := operations.WebhookEvent{
		OperationID: req.OperationID,
		Status:      req.Status,
		VideoURL:    req.VideoURL,
		ImageURL:    req.ImageURL,
		Message:     req.ErrorMessage,
		Prompt:      req.Prompt,
		UserID:      req.OwnerID,
	}
	if ev.Message == nil {
		ev.Message = req.Message
	}
	if ev.UserID == nil {
		ev.UserID = req.UserID
	}
	return ev
}

type webhookResponse struct {
	Success     bool   `json:"success"`
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
	Applied     bool   `json:"applied"`
}

// OperationWebhook ingests a status report from the generation service.
func (a *App) OperationWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Reconciler.ApplyWebhook(r.Context(), req.event())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, webhookResponse{Success: true, OperationID: res.OperationID, Status: string(res.Status), Applied: res.Applied})
}

// CorrectOperation lets an admin set an operation's status by hand.
func (a *App) CorrectOperation(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.OperationID = chi.URLParam(r, "operationId")
	res, err := a.Reconciler.ApplyCorrection(r.Context(), a.currentUserID(r), req.event())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, webhookResponse{Success: true, OperationID: res.OperationID, Status: string(res.Status), Applied: res.Applied})
}

type ownerDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type operationStatusDTO struct {
	ID           string     `json:"id,omitempty"`
	OperationID  string     `json:"operationId"`
	Status       string     `json:"status"`
	VideoURL     *string    `json:"videoUrl,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	Prompt       string     `json:"prompt,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	Message      string     `json:"message,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt"`
	Owner        *ownerDTO  `json:"owner,omitempty"`
}

func statusDTO(v *operations.StatusView) operationStatusDTO {
	dto := operationStatusDTO{
		ID:           v.ID,
		OperationID:  v.OperationID,
		Status:       string(v.Status),
		VideoURL:     v.VideoURL,
		ImageURL:     v.ImageURL,
		Prompt:       v.Prompt,
		ErrorMessage: v.ErrorMessage,
		Message:      v.Message,
		CompletedAt:  utcPtr(v.CompletedAt),
	}
	if v.Found {
		created := v.CreatedAt.UTC()
		dto.CreatedAt = &created
	}
	if v.Owner != nil {
		dto.Owner = &ownerDTO{ID: v.Owner.ID, Name: v.Owner.Name, Email: v.Owner.Email}
	}
	return dto
}

// requesterFilter is the userId query parameter. Without it the guard
// applies no ownership filter.
func requesterFilter(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

// GetOperation returns the stored status of an operation.
func (a *App) GetOperation(w http.ResponseWriter, r *http.Request) {
	view, err := a.Reconciler.Status(r.Context(), chi.URLParam(r, "operationId"), requesterFilter(r), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, statusDTO(view))
}

type liveStatusDTO struct {
	OperationID string     `json:"operationId"`
	Status      string     `json:"status"`
	VideoURL    *string    `json:"videoUrl,omitempty"`
	CompletedAt *time.Time `json:"completedAt"`
	Message     string     `json:"message"`
}

// GetOperationLive asks the generation service for the current status.
func (a *App) GetOperationLive(w http.ResponseWriter, r *http.Request) {
	view, err := a.Reconciler.LiveStatus(r.Context(), chi.URLParam(r, "operationId"), requesterFilter(r), middleware.LocaleFromContext(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, liveStatusDTO{
		OperationID: view.OperationID,
		Status:      string(view.Status),
		VideoURL:    view.VideoURL,
		CompletedAt: utcPtr(view.CompletedAt),
		Message:     view.Message,
	})
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// operationDTO is the history representation of a stored operation.
type operationDTO struct {
	ID           string     `json:"id"`
	OperationID  string     `json:"operationId"`
	Status       string     `json:"status"`
	Prompt       string     `json:"prompt"`
	VideoURL     *string    `json:"videoUrl"`
	ImageURL     *string    `json:"imageUrl"`
	ErrorMessage *string    `json:"errorMessage"`
	AspectRatio  *string    `json:"aspectRatio"`
	Resolution   *string    `json:"resolution"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	CompletedAt  *time.Time `json:"completedAt"`
}

func toOperationDTO(op domain.Operation) operationDTO {
	return operationDTO{
		ID:           op.ID,
		OperationID:  op.OperationID,
		Status:       string(op.Status),
		Prompt:       op.Prompt,
		VideoURL:     op.VideoURL,
		ImageURL:     op.ImageURL,
		ErrorMessage: op.ErrorMessage,
		AspectRatio:  op.AspectRatio,
		Resolution:   op.Resolution,
		CreatedAt:    op.CreatedAt.UTC(),
		UpdatedAt:    op.UpdatedAt.UTC(),
		CompletedAt:  utcPtr(op.CompletedAt()),
	}
}
