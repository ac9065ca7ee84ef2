// Package veo is the HTTP client for the external video generation service.
package veo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gateway/internal/domain"
)

// ServiceName labels errors and metrics for this upstream.
const ServiceName = "generation"

const maxErrorBody = 64 << 10

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
		base = "http://api_google:8000/api/v1"
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

// GenerateRequest starts an image-to-video job. Exactly one of ImageURL and
// ImageBase64 is set.
type GenerateRequest struct {
	Prompt         string
	ImageURL       string
	ImageBase64    string
	ContentType    string
	AspectRatio    string
	Resolution     string
	NegativePrompt string
	Model          string
}

type urlPayload struct {
	Prompt         string `json:"prompt"`
	ImageURL       string `json:"image_url"`
	AspectRatio    string `json:"aspect_ratio"`
	Resolution     string `json:"resolution"`
	VeoModel       string `json:"veo_model,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

type base64Payload struct {
	Prompt         string `json:"prompt"`
	ImageBase64    string `json:"image_base64"`
	ContentType    string `json:"content_type"`
	AspectRatio    string `json:"aspect_ratio"`
	Resolution     string `json:"resolution"`
	VeoModel       string `json:"veo_model,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// GenerateResponse is the upstream admission answer.
type GenerateResponse struct {
	OperationID string `json:"operation_id"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// Generate submits the job to the url or base64 endpoint depending on the image source.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	var (
		path    string
		payload any
	)
	if req.ImageBase64 != "" {
		path = "/generate/image-to-video-base64-json"
		payload = base64Payload{
			Prompt:         req.Prompt,
			ImageBase64:    req.ImageBase64,
			ContentType:    req.ContentType,
			AspectRatio:    req.AspectRatio,
			Resolution:     req.Resolution,
			VeoModel:       req.Model,
			NegativePrompt: req.NegativePrompt,
		}
	} else {
		path = "/generate/image-to-video"
		payload = urlPayload{
			Prompt:         req.Prompt,
			ImageURL:       req.ImageURL,
			AspectRatio:    req.AspectRatio,
			Resolution:     req.Resolution,
			VeoModel:       req.Model,
			NegativePrompt: req.NegativePrompt,
		}
	}

	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.OperationID) == "" {
		return nil, &domain.UpstreamError{Service: ServiceName, StatusCode: http.StatusBadGateway, Body: []byte("response missing operation_id")}
	}
	return &out, nil
}

// StatusResponse mirrors the upstream status document. Timestamps are epoch seconds.
type StatusResponse struct {
	OperationID  string   `json:"operation_id"`
	Status       string   `json:"status"`
	Prompt       string   `json:"prompt"`
	CreatedAt    *float64 `json:"created_at"`
	CompletedAt  *float64 `json:"completed_at"`
	VideoURL     *string  `json:"video_url"`
	Filename     *string  `json:"filename"`
	ErrorMessage *string  `json:"error_message"`
}

// Status fetches the live status of operationID.
func (c *Client) Status(ctx context.Context, operationID string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(operationID), nil, &out); err != nil {
		return nil, err
	}
	if out.OperationID == "" {
		out.OperationID = operationID
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("veo: encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("veo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.UpstreamError{Service: ServiceName, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.UpstreamError{Service: ServiceName, StatusCode: resp.StatusCode, Body: raw}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.UpstreamError{Service: ServiceName, StatusCode: http.StatusBadGateway, Body: []byte("invalid response body"), Err: err}
	}
	return nil
}

// MapStatus translates the upstream vocabulary into operation statuses.
// Unknown values are treated as still processing.
func MapStatus(s string) domain.OperationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "pending", "submitted":
		return domain.StatusPending
	case "completed", "complete", "succeeded", "success", "done":
		return domain.StatusCompleted
	case "failed", "failure", "error", "cancelled", "canceled":
		return domain.StatusFailed
	default:
		return domain.StatusProcessing
	}
}

// EpochTime converts fractional epoch seconds to UTC time.
func EpochTime(v *float64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	sec := int64(*v)
	nsec := int64((*v - float64(sec)) * 1e9)
	t := time.Unix(sec, nsec).UTC()
	return &t
}
