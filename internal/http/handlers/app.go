package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/middleware"
	"gateway/internal/operations"
	"gateway/internal/providers/social"
)

// maxBodyBytes leaves room for a 20 MiB image sent as base64.
const maxBodyBytes = 28 << 20

// Publisher forwards content to the publishing service.
type Publisher interface {
	Publish(ctx context.Context, req social.PublishRequest) (json.RawMessage, error)
}

// Pinger reports store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// App holds handler dependencies.
type App struct {
	Config     *infra.Config
	Logger     zerolog.Logger
	Metrics    *infra.Metrics
	Initiator  *operations.Initiator
	Reconciler *operations.Reconciler
	Guard      *operations.Guard
	Operations domain.OperationRepository
	Users      domain.UserRepository
	Webhooks   domain.WebhookRepository
	Publisher  Publisher
	Store      Pinger

	now func() time.Time
}

func (a *App) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now()
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (a *App) error(w http.ResponseWriter, status int, code, msg string) {
	a.json(w, status, errorResponse{Error: msg, Code: code})
}

// fail translates err into the public error envelope. Unknown errors are
// logged with the request id and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ve):
		a.json(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Code: "bad_request", Details: map[string]string{"field": ve.Field}})
	case errors.As(err, &ue):
		status := ue.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		resp := errorResponse{Error: ue.Service + " service request failed", Code: "upstream_error"}
		if len(ue.Body) > 0 {
			if json.Valid(ue.Body) {
				resp.Details = json.RawMessage(ue.Body)
			} else {
				resp.Details = string(ue.Body)
			}
		}
		a.Logger.Warn().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("upstream request failed")
		a.json(w, status, resp)
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, domain.ErrAccessDenied):
		a.error(w, http.StatusForbidden, "forbidden", "access denied")
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, context.DeadlineExceeded):
		a.Logger.Warn().Err(err).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("request timed out")
		a.error(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// decode reads a JSON body into dst. It writes the 400 itself and reports
// whether the handler may continue.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			a.error(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
		case errors.Is(err, io.EOF):
			a.error(w, http.StatusBadRequest, "bad_request", "request body required")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		}
		return false
	}
	return true
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
