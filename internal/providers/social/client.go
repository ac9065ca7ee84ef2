// Package social is the HTTP client for the external publishing service.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gateway/internal/domain"
)

const ServiceName = "publishing"

var (
	platforms    = map[string]struct{}{"instagram": {}, "linkedin": {}, "facebook": {}, "whatsapp": {}}
	contentTypes = map[string]struct{}{"feed": {}, "reel": {}, "story": {}, "message": {}}
)

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://api_rrss:8002/api/v1"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: client, baseURL: base}
}

// PublishRequest is forwarded as-is with the caller's email attached.
type PublishRequest struct {
	Content     string   `json:"content"`
	ContentType string   `json:"contentType"`
	ImageURL    string   `json:"imageUrl,omitempty"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	Platforms   []string `json:"platforms"`
	UserEmail   string   `json:"userEmail"`
}

// Validate normalizes platforms and content type.
func (r *PublishRequest) Validate() error {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" && r.ImageURL == "" && r.VideoURL == "" {
		return domain.NewValidationError("content", "content, imageUrl or videoUrl is required")
	}
	if len(r.Platforms) == 0 {
		return domain.NewValidationError("platforms", "at least one platform is required")
	}
	for i, p := range r.Platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if _, ok := platforms[p]; !ok {
			return domain.NewValidationError("platforms", fmt.Sprintf("unsupported platform %q", p))
		}
		r.Platforms[i] = p
	}
	r.ContentType = strings.ToLower(strings.TrimSpace(r.ContentType))
	if r.ContentType == "" {
		r.ContentType = "feed"
	}
	if _, ok := contentTypes[r.ContentType]; !ok {
		return domain.NewValidationError("contentType", fmt.Sprintf("unsupported content type %q", r.ContentType))
	}
	return nil
}

// Publish posts the request and returns the upstream result document.
func (c *Client) Publish(ctx context.Context, req PublishRequest) (json.RawMessage, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("social: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/publish", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("social: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.UpstreamError{Service: ServiceName, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.UpstreamError{Service: ServiceName, StatusCode: http.StatusBadGateway, Err: err}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.UpstreamError{Service: ServiceName, StatusCode: resp.StatusCode, Body: body}
	}
	if !json.Valid(body) {
		return nil, &domain.UpstreamError{Service: ServiceName, StatusCode: http.StatusBadGateway, Body: body}
	}
	return json.RawMessage(body), nil
}
