package veo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gateway/internal/domain"
)

type captureTransport struct {
	req    *http.Request
	body   []byte
	status int
	resp   string
	err    error
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.req = req
	if req.Body != nil {
		c.body, _ = io.ReadAll(req.Body)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &http.Response{
		StatusCode: c.status,
		Body:       io.NopCloser(strings.NewReader(c.resp)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Request:    req,
	}, nil
}

func newTestClient(tr *captureTransport) *Client {
	return NewClient(Options{BaseURL: "http://veo.test/api/v1/", HTTPClient: &http.Client{Transport: tr}})
}

func TestGenerateURLEndpoint(t *testing.T) {
	tr := &captureTransport{status: http.StatusOK, resp: `{"operation_id":"op-1","status":"queued","message":"ok"}`}
	client := newTestClient(tr)

	res, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:      "a lighthouse at dusk",
		ImageURL:    "https://cdn.example.com/a.png",
		AspectRatio: "9:16",
		Resolution:  "1080p",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if res.OperationID != "op-1" || res.Status != "queued" {
		t.Fatalf("response = %+v", res)
	}
	if tr.req.URL.String() != "http://veo.test/api/v1/generate/image-to-video" {
		t.Fatalf("url = %q", tr.req.URL.String())
	}
	var sent map[string]any
	if err := json.Unmarshal(tr.body, &sent); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if sent["image_url"] != "https://cdn.example.com/a.png" || sent["aspect_ratio"] != "9:16" || sent["resolution"] != "1080p" {
		t.Fatalf("body = %v", sent)
	}
	if _, ok := sent["veo_model"]; ok {
		t.Fatalf("empty veo_model should be omitted")
	}
}

func TestGenerateBase64Endpoint(t *testing.T) {
	tr := &captureTransport{status: http.StatusOK, resp: `{"operation_id":"op-2","status":"queued","message":"ok"}`}
	client := newTestClient(tr)

	_, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:      "waves",
		ImageBase64: "aGVsbG8=",
		ContentType: "image/png",
		AspectRatio: "16:9",
		Resolution:  "720p",
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !strings.HasSuffix(tr.req.URL.Path, "/generate/image-to-video-base64-json") {
		t.Fatalf("path = %q", tr.req.URL.Path)
	}
	var sent map[string]any
	_ = json.Unmarshal(tr.body, &sent)
	if sent["image_base64"] != "aGVsbG8=" || sent["content_type"] != "image/png" {
		t.Fatalf("body = %v", sent)
	}
}

func TestGenerateUpstreamRejection(t *testing.T) {
	tr := &captureTransport{status: http.StatusUnprocessableEntity, resp: `{"detail":"bad aspect"}`}
	client := newTestClient(tr)

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x", ImageURL: "https://a/b.png"})
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.StatusCode != http.StatusUnprocessableEntity || !strings.Contains(string(upErr.Body), "bad aspect") {
		t.Fatalf("UpstreamError = %+v", upErr)
	}
}

func TestGenerateUnreachable(t *testing.T) {
	tr := &captureTransport{err: errors.New("dial tcp: connection refused")}
	client := newTestClient(tr)

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "x", ImageURL: "https://a/b.png"})
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != 0 {
		t.Fatalf("expected unreachable UpstreamError, got %v", err)
	}
}

func TestGenerateMissingOperationID(t *testing.T) {
	tr := &captureTransport{status: http.StatusOK, resp: `{"status":"queued"}`}
	_, err := newTestClient(tr).Generate(context.Background(), GenerateRequest{Prompt: "x", ImageURL: "https://a/b.png"})
	var upErr *domain.UpstreamError
	if !errors.As(err, &upErr) || upErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected bad gateway UpstreamError, got %v", err)
	}
}

func TestStatusAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/status/op-7" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"operation_id":"op-7","status":"completed","prompt":"p","type":"image_to_video","created_at":1700000000.5,"completed_at":1700000100.25,"video_url":"/videos/op-7.mp4"}`))
	}))
	defer srv.Close()

	client := NewClient(Options{BaseURL: srv.URL + "/api/v1"})
	res, err := client.Status(context.Background(), "op-7")
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if MapStatus(res.Status) != domain.StatusCompleted {
		t.Fatalf("status = %q", res.Status)
	}
	if res.VideoURL == nil || *res.VideoURL != "/videos/op-7.mp4" {
		t.Fatalf("VideoURL = %v", res.VideoURL)
	}
	completed := EpochTime(res.CompletedAt)
	want := time.Date(2023, 11, 14, 22, 15, 0, 250000000, time.UTC)
	if completed == nil || !completed.Equal(want) {
		t.Fatalf("CompletedAt = %v, want %v", completed, want)
	}
}

func TestMapStatus(t *testing.T) {
	tests := map[string]domain.OperationStatus{
		"queued":      domain.StatusPending,
		"RUNNING":     domain.StatusProcessing,
		"processing":  domain.StatusProcessing,
		"completed":   domain.StatusCompleted,
		"failed":      domain.StatusFailed,
		"cancelled":   domain.StatusFailed,
		"":            domain.StatusProcessing,
		"mystery-new": domain.StatusProcessing,
	}
	for in, want := range tests {
		if got := MapStatus(in); got != want {
			t.Fatalf("MapStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
