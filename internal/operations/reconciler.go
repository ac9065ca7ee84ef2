package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"gateway/internal/domain"
	"gateway/internal/infra"
	"gateway/internal/providers/veo"
)

const (
	sourceWebhook    = "webhook"
	sourceLive       = "live"
	sourceCorrection = "correction"
)

// StatusSource reads live job state from the generation service.
type StatusSource interface {
	Status(ctx context.Context, operationID string) (*veo.StatusResponse, error)
}

// WebhookEvent is a status report pushed by the generation service.
type WebhookEvent struct {
	OperationID string
	Status      string
	VideoURL    *string
	ImageURL    *string
	Message     *string
	Prompt      *string
	UserID      *string
}

// shape lists which optional fields were present, for intake logs.
func (e WebhookEvent) shape() []string {
	var present []string
	if e.Status != "" {
		present = append(present, "status")
	}
	if e.VideoURL != nil {
		present = append(present, "videoUrl")
	}
	if e.ImageURL != nil {
		present = append(present, "imageUrl")
	}
	if e.Message != nil {
		present = append(present, "message")
	}
	if e.Prompt != nil {
		present = append(present, "prompt")
	}
	if e.UserID != nil {
		present = append(present, "userId")
	}
	return present
}

// ApplyResult reports what a status report did to the stored record.
type ApplyResult struct {
	OperationID string
	Status      domain.OperationStatus
	Applied     bool
	Created     bool
}

// OwnerView is the public projection of an operation owner.
type OwnerView struct {
	ID    string
	Name  string
	Email string
}

// StatusView is the stored status of an operation. Only OperationID, Status
// and Message are set on the not-found placeholder.
type StatusView struct {
	Found        bool
	ID           string
	OperationID  string
	Status       domain.OperationStatus
	VideoURL     *string
	ImageURL     *string
	Prompt       string
	ErrorMessage *string
	Message      string
	CreatedAt    time.Time
	CompletedAt  *time.Time
	Owner        *OwnerView
}

// LiveView is the upstream status of an operation mapped to local vocabulary.
type LiveView struct {
	OperationID string
	Status      domain.OperationStatus
	VideoURL    *string
	CompletedAt *time.Time
	Message     string
}

// Reconciler merges webhook reports, live polls and admin corrections into
// the operation store.
type Reconciler struct {
	ops      domain.OperationRepository
	webhooks domain.WebhookRepository
	users    domain.UserRepository
	guard    *Guard
	live     StatusSource
	policy   domain.TransitionPolicy
	metrics  *infra.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewReconciler builds a Reconciler. webhooks, users, live and metrics may be nil.
func NewReconciler(ops domain.OperationRepository, webhooks domain.WebhookRepository, users domain.UserRepository, guard *Guard, live StatusSource, policy domain.TransitionPolicy, metrics *infra.Metrics, logger zerolog.Logger) *Reconciler {
	if policy == "" {
		policy = domain.TransitionsStrict
	}
	return &Reconciler{
		ops:      ops,
		webhooks: webhooks,
		users:    users,
		guard:    guard,
		live:     live,
		policy:   policy,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// errMissingMedia marks a completion report that names no video or image.
var errMissingMedia = domain.NewValidationError("videoUrl", "completed operations require videoUrl or imageUrl")

// ApplyWebhook merges a webhook report under the configured transition policy.
// Under strict intake a completion without media is acknowledged but not
// applied, so senders do not retry it forever.
func (r *Reconciler) ApplyWebhook(ctx context.Context, ev WebhookEvent) (*ApplyResult, error) {
	res, err := r.apply(ctx, sourceWebhook, ev, r.policy, r.policy == domain.TransitionsStrict)
	if errors.Is(err, errMissingMedia) {
		return r.ignoreIncomplete(ctx, ev)
	}
	if err != nil {
		r.logger.Warn().Err(err).
			Str("operation_id", ev.OperationID).
			Strs("fields", ev.shape()).
			Msg("webhook intake failed")
	}
	return res, err
}

func (r *Reconciler) ignoreIncomplete(ctx context.Context, ev WebhookEvent) (*ApplyResult, error) {
	opID := strings.TrimSpace(ev.OperationID)
	r.metrics.ObserveStatusEvent(sourceWebhook, string(domain.StatusCompleted), "incomplete")
	r.logger.Warn().
		Str("operation_id", opID).
		Strs("fields", ev.shape()).
		Msg("completion without media ignored")

	res := &ApplyResult{OperationID: opID, Status: domain.StatusProcessing}
	op, err := r.ops.FindByOperationID(ctx, opID)
	switch {
	case err == nil:
		res.Status = op.Status
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("load operation %s: %w", opID, err)
	}
	return res, nil
}

// ApplyCorrection lets an admin overwrite an operation's status. Any
// transition is allowed; the completed and failed field rules still hold.
func (r *Reconciler) ApplyCorrection(ctx context.Context, requesterID string, ev WebhookEvent) (*ApplyResult, error) {
	admin, err := r.guard.RequireAdmin(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	res, err := r.apply(ctx, sourceCorrection, ev, domain.TransitionsPermissive, true)
	if err != nil {
		return nil, err
	}
	r.logger.Info().
		Str("operation_id", res.OperationID).
		Str("admin_id", admin.ID).
		Str("status", string(res.Status)).
		Msg("operation corrected")
	return res, nil
}

func (r *Reconciler) apply(ctx context.Context, source string, ev WebhookEvent, policy domain.TransitionPolicy, enforce bool) (*ApplyResult, error) {
	opID := strings.TrimSpace(ev.OperationID)
	if opID == "" {
		return nil, domain.NewValidationError("operationId", "operationId is required")
	}
	status := domain.StatusCompleted
	if strings.TrimSpace(ev.Status) != "" {
		parsed, err := domain.ParseOperationStatus(ev.Status)
		if err != nil {
			return nil, err
		}
		status = parsed
	}

	fields := domain.OperationFields{
		Status:       status,
		VideoURL:     nonEmpty(ev.VideoURL),
		ImageURL:     nonEmpty(ev.ImageURL),
		ErrorMessage: nonEmpty(ev.Message),
		OwnerID:      nonEmpty(ev.UserID),
		Prompt:       nonEmpty(ev.Prompt),
	}
	if enforce {
		if err := enforceTerminalFields(&fields); err != nil {
			return nil, err
		}
	}
	if status != domain.StatusFailed {
		fields.ErrorMessage = nil
	}

	return r.upsert(ctx, source, opID, fields, policy)
}

// enforceTerminalFields keeps completed records pointing at media and failed
// records carrying a reason.
func enforceTerminalFields(fields *domain.OperationFields) error {
	switch fields.Status {
	case domain.StatusCompleted:
		if fields.VideoURL == nil && fields.ImageURL == nil {
			return errMissingMedia
		}
	case domain.StatusFailed:
		if fields.ErrorMessage == nil {
			msg := defaultFailureMessage
			fields.ErrorMessage = &msg
		}
	}
	return nil
}

func (r *Reconciler) upsert(ctx context.Context, source, opID string, fields domain.OperationFields, policy domain.TransitionPolicy) (*ApplyResult, error) {
	res, err := r.ops.UpsertByOperationID(ctx, opID, fields, policy)
	if err != nil {
		r.metrics.ObserveStatusEvent(source, string(fields.Status), "error")
		return nil, fmt.Errorf("upsert operation %s: %w", opID, err)
	}
	stored := res.Operation

	if !res.Applied {
		r.metrics.ObserveStatusEvent(source, string(fields.Status), "rejected")
		r.logger.Warn().
			Str("operation_id", opID).
			Str("source", source).
			Str("stored_status", string(stored.Status)).
			Str("incoming_status", string(fields.Status)).
			Msg("status transition rejected")
		return &ApplyResult{OperationID: opID, Status: stored.Status, Applied: false, Created: res.Created}, nil
	}

	r.metrics.ObserveStatusEvent(source, string(stored.Status), "applied")
	r.logger.Info().
		Str("operation_id", opID).
		Str("source", source).
		Str("status", string(stored.Status)).
		Bool("created", res.Created).
		Msg("operation status applied")

	r.stampRegistrations(ctx, stored.Status)
	return &ApplyResult{OperationID: opID, Status: stored.Status, Applied: true, Created: res.Created}, nil
}

// stampRegistrations records the last execution time on subscribed webhook
// registrations. Failures are logged; the status change already happened.
func (r *Reconciler) stampRegistrations(ctx context.Context, status domain.OperationStatus) {
	if r.webhooks == nil {
		return
	}
	event, ok := domain.EventForStatus(status)
	if !ok {
		return
	}
	n, err := r.webhooks.MarkExecuted(ctx, event, r.now().UTC())
	if err != nil {
		r.logger.Error().Err(err).Str("event", event).Msg("stamp webhook registrations failed")
		return
	}
	if n > 0 {
		r.logger.Debug().Str("event", event).Int("registrations", n).Msg("webhook registrations stamped")
	}
}

// Status returns the stored status of operationID. An unknown id yields a
// processing placeholder rather than an error.
func (r *Reconciler) Status(ctx context.Context, operationID, requesterID, locale string) (*StatusView, error) {
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return nil, domain.NewValidationError("operationId", "operationId is required")
	}
	op, err := r.ops.FindByOperationID(ctx, operationID)
	if errors.Is(err, domain.ErrNotFound) {
		return &StatusView{
			OperationID: operationID,
			Status:      domain.StatusProcessing,
			Message:     message(locale, msgNotFoundYet),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find operation %s: %w", operationID, err)
	}
	if err := r.guard.CanRead(requesterID, op); err != nil {
		return nil, err
	}

	view := &StatusView{
		Found:        true,
		ID:           op.ID,
		OperationID:  op.OperationID,
		Status:       op.Status,
		VideoURL:     op.VideoURL,
		ImageURL:     op.ImageURL,
		Prompt:       op.Prompt,
		ErrorMessage: op.ErrorMessage,
		Message:      StatusMessage(locale, op.Status),
		CreatedAt:    op.CreatedAt,
		CompletedAt:  op.CompletedAt(),
		Owner:        r.lookupOwner(ctx, op.Owner()),
	}
	if op.Status == domain.StatusFailed && op.ErrorMessage != nil {
		view.Message = *op.ErrorMessage
	}
	return view, nil
}

func (r *Reconciler) lookupOwner(ctx context.Context, ownerID string) *OwnerView {
	if r.users == nil || ownerID == "" || ownerID == domain.SystemOwner {
		return nil
	}
	u, err := r.users.GetByID(ctx, ownerID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("load operation owner failed")
		}
		return &OwnerView{ID: ownerID}
	}
	return &OwnerView{ID: u.ID, Name: u.Name, Email: u.Email}
}

// LiveStatus asks the generation service for the current state of
// operationID. Terminal results are merged into an existing stored record.
func (r *Reconciler) LiveStatus(ctx context.Context, operationID, requesterID, locale string) (*LiveView, error) {
	operationID = strings.TrimSpace(operationID)
	if operationID == "" {
		return nil, domain.NewValidationError("operationId", "operationId is required")
	}
	if r.live == nil {
		return nil, &domain.UpstreamError{Service: veo.ServiceName, Err: errors.New("live status source not configured")}
	}

	stored, err := r.ops.FindByOperationID(ctx, operationID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		stored = nil
	case err != nil:
		return nil, fmt.Errorf("find operation %s: %w", operationID, err)
	default:
		if err := r.guard.CanRead(requesterID, stored); err != nil {
			return nil, err
		}
	}

	resp, err := r.live.Status(ctx, operationID)
	if err != nil {
		var upErr *domain.UpstreamError
		if errors.As(err, &upErr) {
			r.metrics.ObserveUpstream(veo.ServiceName, upErr.StatusCode)
		}
		return nil, err
	}
	r.metrics.ObserveUpstream(veo.ServiceName, 200)

	status := veo.MapStatus(resp.Status)
	view := &LiveView{
		OperationID: resp.OperationID,
		Status:      status,
		VideoURL:    nonEmpty(resp.VideoURL),
		CompletedAt: veo.EpochTime(resp.CompletedAt),
		Message:     StatusMessage(locale, status),
	}
	if msg := nonEmpty(resp.ErrorMessage); msg != nil {
		view.Message = *msg
	}

	if stored != nil && status.Terminal() {
		r.mergeLive(ctx, operationID, status, view.VideoURL, nonEmpty(resp.ErrorMessage))
	}
	return view, nil
}

// mergeLive writes a terminal poll result through the regular upsert path so
// polling heals missed webhooks. Errors do not fail the poll.
func (r *Reconciler) mergeLive(ctx context.Context, operationID string, status domain.OperationStatus, videoURL, errMsg *string) {
	fields := domain.OperationFields{Status: status, VideoURL: videoURL}
	if status == domain.StatusFailed {
		fields.ErrorMessage = errMsg
	}
	if r.policy == domain.TransitionsStrict {
		if err := enforceTerminalFields(&fields); err != nil {
			r.logger.Warn().Err(err).Str("operation_id", operationID).Msg("live status not merged")
			return
		}
	}
	if _, err := r.upsert(ctx, sourceLive, operationID, fields, r.policy); err != nil {
		r.logger.Error().Err(err).Str("operation_id", operationID).Msg("merge live status failed")
	}
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
