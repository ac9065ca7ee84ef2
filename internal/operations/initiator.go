package operations

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/providers/veo"
	"gateway/internal/storage"
)

const (
	DefaultAspectRatio = "16:9"
	DefaultResolution  = "720p"
	DefaultContentType = "image/jpeg"

	maxNegativePrompt = 500
	maxInlineImage    = 20 << 20
)

var (
	aspectRatios = map[string]struct{}{"16:9": {}, "9:16": {}}
	resolutions  = map[string]struct{}{"720p": {}, "1080p": {}}
	models       = map[string]struct{}{"veo-3.0-generate-preview": {}, "veo-3.0-fast-generate-001": {}}
)

// Generator starts jobs on the generation service.
type Generator interface {
	Generate(ctx context.Context, req veo.GenerateRequest) (*veo.GenerateResponse, error)
}

// InitiateRequest is a validated-on-entry request to start a video job.
type InitiateRequest struct {
	OwnerID        string
	Prompt         string
	ImageURL       string
	ImageData      string
	ContentType    string
	AspectRatio    string
	Resolution     string
	NegativePrompt string
	Model          string
}

type InitiateResult struct {
	OperationID  string
	Status       domain.OperationStatus
	ImageURLUsed string
}

type InitiatorConfig struct {
	PublicBaseURL string
	Policy        domain.TransitionPolicy
}

// Initiator validates generation requests, forwards them upstream and records
// the admitted operation.
type Initiator struct {
	gen      Generator
	ops      domain.OperationRepository
	uploader storage.Uploader
	cfg      InitiatorConfig
	metrics  *infra.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewInitiator builds an Initiator. uploader and metrics may be nil.
func NewInitiator(gen Generator, ops domain.OperationRepository, uploader storage.Uploader, cfg InitiatorConfig, metrics *infra.Metrics, logger zerolog.Logger) *Initiator {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	if cfg.Policy == "" {
		cfg.Policy = domain.TransitionsStrict
	}
	return &Initiator{gen: gen, ops: ops, uploader: uploader, cfg: cfg, metrics: metrics, logger: logger, now: time.Now}
}

// Initiate runs local validation, then the upstream call, then the eager
// record write. A store failure after admission is logged, not returned.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	inline, err := i.normalize(&req)
	if err != nil {
		return nil, err
	}

	upstreamReq := veo.GenerateRequest{
		Prompt:         req.Prompt,
		AspectRatio:    req.AspectRatio,
		Resolution:     req.Resolution,
		NegativePrompt: req.NegativePrompt,
		Model:          req.Model,
	}
	if inline != nil {
		upstreamReq.ImageBase64 = req.ImageData
		upstreamReq.ContentType = req.ContentType
	} else {
		upstreamReq.ImageURL = req.ImageURL
	}

	resp, err := i.gen.Generate(ctx, upstreamReq)
	if err != nil {
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) {
			i.metrics.ObserveUpstream(veo.ServiceName, upErr.StatusCode)
		}
		i.logger.Warn().Err(err).Str("owner_id", req.OwnerID).Msg("generation request rejected")
		return nil, err
	}
	i.metrics.ObserveUpstream(veo.ServiceName, 200)

	status := veo.MapStatus(resp.Status)
	if status.Terminal() {
		// Admission carries no result; the webhook reports the terminal state.
		status = domain.StatusPending
	}
	result := &InitiateResult{OperationID: resp.OperationID, Status: status, ImageURLUsed: req.ImageURL}

	if inline != nil {
		result.ImageURLUsed = i.storeInline(ctx, inline, req.ContentType, resp.OperationID)
	}

	fields := domain.OperationFields{
		OwnerID:     &req.OwnerID,
		Prompt:      &req.Prompt,
		Status:      status,
		AspectRatio: &req.AspectRatio,
		Resolution:  &req.Resolution,
	}
	if result.ImageURLUsed != "" {
		fields.ImageURL = &result.ImageURLUsed
	}
	if _, err := i.ops.UpsertByOperationID(ctx, resp.OperationID, fields, i.cfg.Policy); err != nil {
		i.logger.Error().Err(err).
			Str("operation_id", resp.OperationID).
			Str("owner_id", req.OwnerID).
			Msg("record admitted operation failed; webhook will create it")
	} else {
		i.logger.Info().Str("operation_id", resp.OperationID).Str("owner_id", req.OwnerID).Msg("operation admitted")
	}
	return result, nil
}

// normalize validates req in place and returns the decoded inline image, if any.
func (i *Initiator) normalize(req *InitiateRequest) ([]byte, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.ImageData = strings.TrimSpace(req.ImageData)
	req.NegativePrompt = strings.TrimSpace(req.NegativePrompt)
	req.Model = strings.TrimSpace(req.Model)

	if req.Prompt == "" {
		return nil, domain.NewValidationError("prompt", "prompt is required")
	}
	switch {
	case req.ImageURL == "" && req.ImageData == "":
		return nil, domain.NewValidationError("imageUrl", "imageUrl or imageData is required")
	case req.ImageURL != "" && req.ImageData != "":
		return nil, domain.NewValidationError("imageUrl", "provide either imageUrl or imageData, not both")
	}

	if req.AspectRatio == "" {
		req.AspectRatio = DefaultAspectRatio
	}
	if _, ok := aspectRatios[req.AspectRatio]; !ok {
		return nil, domain.NewValidationError("aspectRatio", "aspectRatio must be 16:9 or 9:16")
	}
	if req.Resolution == "" {
		req.Resolution = DefaultResolution
	}
	if _, ok := resolutions[req.Resolution]; !ok {
		return nil, domain.NewValidationError("resolution", "resolution must be 720p or 1080p")
	}
	if len([]rune(req.NegativePrompt)) > maxNegativePrompt {
		return nil, domain.NewValidationError("negativePrompt", "negativePrompt cannot exceed 500 characters")
	}
	if req.Model != "" {
		if _, ok := models[req.Model]; !ok {
			return nil, domain.NewValidationError("model", "unsupported model")
		}
	}

	if req.ImageURL != "" {
		if strings.HasPrefix(req.ImageURL, "/") {
			req.ImageURL = i.cfg.PublicBaseURL + req.ImageURL
		} else if !strings.HasPrefix(req.ImageURL, "http://") && !strings.HasPrefix(req.ImageURL, "https://") {
			return nil, domain.NewValidationError("imageUrl", "imageUrl must be absolute or start with /")
		}
		return nil, nil
	}

	data, contentType, err := decodeInlineImage(req.ImageData)
	if err != nil {
		return nil, err
	}
	if req.ContentType == "" {
		req.ContentType = contentType
	}
	if req.ContentType == "" {
		req.ContentType = DefaultContentType
	}
	req.ImageData = base64.StdEncoding.EncodeToString(data)
	return data, nil
}

// decodeInlineImage accepts raw base64 or a data URL and returns the bytes
// plus the content type named by the data URL.
func decodeInlineImage(raw string) ([]byte, string, error) {
	contentType := ""
	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", domain.NewValidationError("imageData", "imageData must be base64 encoded")
		}
		contentType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		raw = payload
	} else if rest, ok := strings.CutPrefix(raw, "base64,"); ok {
		raw = rest
	}
	if base64.StdEncoding.DecodedLen(len(raw)) > maxInlineImage {
		return nil, "", domain.NewValidationError("imageData", "imageData exceeds 20 MiB")
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(raw, "="))
	}
	if err != nil || len(data) == 0 {
		return nil, "", domain.NewValidationError("imageData", "imageData must be base64 encoded")
	}
	return data, contentType, nil
}

func (i *Initiator) storeInline(ctx context.Context, data []byte, contentType, operationID string) string {
	if i.uploader == nil {
		return ""
	}
	res, err := i.uploader.Upload(ctx, &storage.UploadRequest{
		ObjectName:  storage.InputObjectName(i.now(), contentType),
		Content:     bytes.NewReader(data),
		ContentType: contentType,
	})
	if err != nil {
		i.logger.Warn().Err(err).Str("operation_id", operationID).Msg("store inline image failed")
		return ""
	}
	return res.URL
}
