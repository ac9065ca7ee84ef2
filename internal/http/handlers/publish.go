package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gateway/internal/domain"
	"gateway/internal/middleware"
	"gateway/internal/providers/social"
)

type publishRequest struct {
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	ImageURL    string   `json:"imageUrl"`
	VideoURL    string   `json:"videoUrl"`
	Platforms   []string `json:"platforms"`
}

type publishResponse struct {
	Success     bool            `json:"success"`
	Result      json.RawMessage `json:"result"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// SocialPublish forwards content to the publishing service on behalf of the caller.
func (a *App) SocialPublish(w http.ResponseWriter, r *http.Request) {
	if a.currentUserID(r) == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	email := middleware.UserEmailFromContext(r.Context())
	if email == "" {
		if u, err := a.Users.GetByID(r.Context(), a.currentUserID(r)); err == nil {
			email = u.Email
		}
	}
	var req publishRequest
	if !a.decode(w, r, &req) {
		return
	}
	out := social.PublishRequest{
		Content:     req.Content,
		ContentType: req.ContentType,
		ImageURL:    req.ImageURL,
		VideoURL:    req.VideoURL,
		Platforms:   req.Platforms,
		UserEmail:   email,
	}
	if err := out.Validate(); err != nil {
		a.fail(w, r, err)
		return
	}
	result, err := a.Publisher.Publish(r.Context(), out)
	if err != nil {
		var ue *domain.UpstreamError
		if errors.As(err, &ue) {
			a.Metrics.ObserveUpstream(social.ServiceName, ue.StatusCode)
		}
		a.fail(w, r, err)
		return
	}
	a.Metrics.ObserveUpstream(social.ServiceName, http.StatusOK)
	a.Logger.Info().Str("user_id", a.currentUserID(r)).Strs("platforms", out.Platforms).Msg("content published")
	a.json(w, http.StatusOK, publishResponse{Success: true, Result: result, PublishedAt: a.clock().UTC()})
}
