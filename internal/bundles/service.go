package bundles

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/WeDesignz/WebApp-sub000/internal/catalog"
	"github.com/WeDesignz/WebApp-sub000/internal/entitlements"
	"github.com/WeDesignz/WebApp-sub000/internal/events"
	"github.com/WeDesignz/WebApp-sub000/internal/mockpdf"
	"github.com/WeDesignz/WebApp-sub000/internal/queue"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/metrics"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/storage/object"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

// Service contains business logic for mock-PDF bundles.
type Service struct {
	Repo         Repo
	Catalog      catalog.Repo
	Entitlements *entitlements.Service
	Store        object.ObjectStore
	Events       events.Broadcaster
	// Queue delivers jobs to a worker. When nil, jobs run in-process.
	Queue queue.Client
}

// CreateInput is a client's bundle request before server validation.
type CreateInput struct {
	Strategy                 string
	RequiredCount            int
	ProductIDs               []string
	IsFree                   bool
	UseSubscriptionAllowance bool
	CustomerName             string
	CustomerContact          string
}

// Create re-validates in against the server's own eligibility, pricing and
// catalog, stores the bundle and, when free, consumes the entitlement and
// starts generation. Paid bundles wait in pending until MarkPaid.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Bundle, error) {
	if strings.TrimSpace(userID) == "" {
		return Bundle{}, mockpdf.ErrNotAuthenticated
	}
	strategy, err := mockpdf.ParseStrategy(in.Strategy)
	if err != nil {
		return Bundle{}, err
	}
	if in.RequiredCount <= 0 {
		return Bundle{}, &mockpdf.ValidationError{Field: "requiredCount", Reason: "must be positive"}
	}
	if err := validateProductIDs(in.ProductIDs, in.RequiredCount); err != nil {
		return Bundle{}, err
	}

	table := s.Entitlements.Prices()
	snap, err := s.Entitlements.Snapshot(ctx, userID)
	if err != nil {
		return Bundle{}, fmt.Errorf("load eligibility: %w", err)
	}
	quote := mockpdf.QuoteFor(strategy, in.RequiredCount, snap, in.UseSubscriptionAllowance, table)
	if in.IsFree != quote.IsFree {
		return Bundle{}, &EntitlementMismatchError{Claimed: in.IsFree, Actual: quote.IsFree}
	}

	b := Bundle{
		ID:            uuid.NewString(),
		UserID:        userID,
		Strategy:      strategy,
		RequiredCount: in.RequiredCount,
		ProductIDs:    append([]string(nil), in.ProductIDs...),
		Amount:        quote.Amount,
		Currency:      quote.Currency,
		IsFree:        quote.IsFree,
		UsedAllowance: quote.UsesAllowance,
		Status:        mockpdf.StatusPending,
		CreatedAt:     time.Now().UTC(),
	}
	b.UpdatedAt = b.CreatedAt

	if !quote.IsFree {
		if !table.AllowsSize(in.RequiredCount) {
			return Bundle{}, &mockpdf.ValidationError{
				Field:  "requiredCount",
				Reason: fmt.Sprintf("%d is not an available bundle size (choose from %v)", in.RequiredCount, table.AllowedSizes),
			}
		}
		name := strings.TrimSpace(in.CustomerName)
		if name == "" {
			return Bundle{}, &mockpdf.ValidationError{Field: "customerName", Reason: "is required for paid downloads"}
		}
		contact, err := mockpdf.NormalizeContact(in.CustomerContact)
		if err != nil {
			return Bundle{}, err
		}
		b.ContactName, b.ContactPhone = name, contact
	}

	found, err := s.Catalog.GetMany(ctx, b.ProductIDs)
	if err != nil {
		return Bundle{}, fmt.Errorf("catalog lookup: %w", err)
	}
	if missing := missingIDs(b.ProductIDs, found); len(missing) > 0 {
		return Bundle{}, &UnknownDesignsError{IDs: missing}
	}

	if err := s.Repo.Create(ctx, b); err != nil {
		return Bundle{}, err
	}

	if b.IsFree {
		if err := s.consume(ctx, b); err != nil {
			// Another request claimed the entitlement first.
			_, _ = s.abandon(ctx, b, ErrorCodeEntitlement, err)
			if errors.Is(err, entitlements.ErrFreeBundleUsed) || errors.Is(err, entitlements.ErrAllowanceExhausted) {
				return Bundle{}, &EntitlementMismatchError{Claimed: true, Actual: false}
			}
			return Bundle{}, err
		}
	}

	metrics.IncBundleRequestCreated(b.IsFree)
	telemetry.Info("bundle.created", map[string]any{
		"request_id":     requestIDFromContext(ctx),
		"user_id":        userID,
		"job_id":         b.ID,
		"strategy":       string(b.Strategy),
		"count":          b.RequiredCount,
		"is_free":        b.IsFree,
		"used_allowance": b.UsedAllowance,
		"amount":         b.Amount,
		"currency":       b.Currency,
	})

	if b.IsFree {
		if err := s.enqueue(ctx, b.ID); err != nil {
			return s.rollbackFree(ctx, b, err)
		}
	}
	return b, nil
}

// rollbackFree undoes a free request whose job could not be queued: the job is
// failed and the entitlement handed back. A job a worker already picked up is
// kept and returned as created.
func (s *Service) rollbackFree(ctx context.Context, b Bundle, cause error) (Bundle, error) {
	ctx = context.WithoutCancel(ctx)
	started, err := s.abandon(ctx, b, ErrorCodeQueue, cause)
	if started {
		return b, nil
	}
	if err != nil {
		telemetry.Error("bundle.rollback_failed", map[string]any{"job_id": b.ID, "error": err.Error(), "cause": cause.Error()})
		return Bundle{}, cause
	}
	release := s.Entitlements.ReleaseFree
	if b.UsedAllowance {
		release = s.Entitlements.ReleaseAllowance
	}
	if _, err := release(ctx, b.UserID); err != nil {
		telemetry.Error("bundle.release_failed", map[string]any{"job_id": b.ID, "user_id": b.UserID, "used_allowance": b.UsedAllowance, "error": err.Error()})
	}
	telemetry.Warn("bundle.enqueue_rolled_back", map[string]any{"job_id": b.ID, "user_id": b.UserID, "error": cause.Error()})
	return Bundle{}, cause
}

// abandon fails a pending job that never reached a worker. started reports
// that a worker moved it first, in which case nothing is changed.
func (s *Service) abandon(ctx context.Context, b Bundle, code string, cause error) (started bool, err error) {
	msg := sanitizeError(cause)
	if err := s.Repo.UpdateStatus(ctx, b.ID, StatusUpdate{Status: mockpdf.StatusProcessing}); err != nil {
		return errors.Is(err, ErrInvalidTransition), err
	}
	now := time.Now().UTC()
	return false, s.Repo.UpdateStatus(ctx, b.ID, StatusUpdate{
		Status:       mockpdf.StatusFailed,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		CompletedAt:  &now,
	})
}

func (s *Service) consume(ctx context.Context, b Bundle) error {
	if b.UsedAllowance {
		_, err := s.Entitlements.ConsumeAllowance(ctx, b.UserID)
		return err
	}
	_, err := s.Entitlements.ConsumeFree(ctx, b.UserID)
	return err
}

func validateProductIDs(ids []string, required int) error {
	if n := len(ids); n != required {
		if n < required {
			return &mockpdf.ValidationError{Field: "productIds", Reason: fmt.Sprintf("need %d more designs", required-n)}
		}
		return &mockpdf.ValidationError{Field: "productIds", Reason: fmt.Sprintf("%d designs selected, expected exactly %d", n, required)}
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return &mockpdf.ValidationError{Field: "productIds", Reason: "contains an empty id"}
		}
		if _, dup := seen[id]; dup {
			return &mockpdf.ValidationError{Field: "productIds", Reason: fmt.Sprintf("design %s is listed twice", id)}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func missingIDs(ids []string, found map[string]catalog.Design) []string {
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Get returns the user's bundle.
func (s *Service) Get(ctx context.Context, userID, id string) (Bundle, error) {
	return s.Repo.GetForUser(ctx, userID, id)
}

// GetByID returns any bundle. Used by payments, which checks ownership itself.
func (s *Service) GetByID(ctx context.Context, id string) (Bundle, error) {
	return s.Repo.GetByID(ctx, id)
}

// List returns the user's bundles, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Bundle, error) {
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// MarkPaid records a captured payment and starts generation. Calling it
// again for a paid job that is still pending queues it again, so a capture
// retried after a failed enqueue recovers; Process ignores the duplicate.
func (s *Service) MarkPaid(ctx context.Context, id string) error {
	changed, err := s.Repo.MarkPaid(ctx, id)
	if err != nil {
		return err
	}
	if !changed {
		b, err := s.Repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if b.Status != mockpdf.StatusPending {
			return nil
		}
	}
	return s.enqueue(ctx, id)
}

// OpenDownload opens the finished artifact. A completed job whose object has
// vanished from storage reports ErrArtifactMissing.
func (s *Service) OpenDownload(ctx context.Context, userID, id string) (Bundle, *object.Object, error) {
	b, err := s.Repo.GetForUser(ctx, userID, id)
	if err != nil {
		return Bundle{}, nil, err
	}
	if b.Status != mockpdf.StatusCompleted || b.DownloadKey == "" {
		return b, nil, ErrNotReady
	}
	if s.Store == nil {
		return b, nil, errors.New("object store not configured")
	}
	obj, err := s.Store.Open(ctx, b.DownloadKey)
	if errors.Is(err, object.ErrNotFound) {
		telemetry.Error("bundle.artifact_missing", map[string]any{"job_id": b.ID, "request_id": requestIDFromContext(ctx)})
		return b, nil, ErrArtifactMissing
	}
	if err != nil {
		return b, nil, fmt.Errorf("open artifact: %w", err)
	}
	return b, obj, nil
}

func (s *Service) enqueue(ctx context.Context, id string) error {
	if s.Queue == nil {
		go func(ctx context.Context) {
			if err := s.Process(ctx, id); err != nil {
				telemetry.Error("bundle.process_failed", map[string]any{"job_id": id, "error": err.Error()})
			}
		}(backgroundWithRequestID(ctx))
		return nil
	}
	msg := queue.NewMessage(id, requestIDFromContext(ctx), time.Now())
	if err := s.Queue.Send(ctx, msg); err != nil {
		return fmt.Errorf("enqueue job %s: %w", id, err)
	}
	telemetry.Info("bundle.enqueued", map[string]any{"request_id": msg.RequestID, "job_id": id})
	return nil
}

// Process generates the PDF for id. Terminal jobs are left alone, so redelivered
// messages are harmless. Generation failures are recorded on the job and do not
// return an error; only infrastructure errors do.
func (s *Service) Process(ctx context.Context, id string) (err error) {
	b, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("bundle lookup: %w", err)
	}
	if b.Status.Terminal() {
		return nil
	}
	if b.Payable() {
		return ErrPaymentRequired
	}

	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.failBundle(ctx, b, fmt.Errorf("panic: %v", r), &startedAt)
			err = nil
		}
	}()

	if b.Status == mockpdf.StatusPending {
		if err := s.Repo.UpdateStatus(ctx, id, StatusUpdate{Status: mockpdf.StatusProcessing}); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Another worker moved it first.
				return nil
			}
			return fmt.Errorf("set processing: %w", err)
		}
		b.Status = mockpdf.StatusProcessing
		metrics.IncBundleJobStarted()
		s.logStatus(ctx, b, "pending->processing", nil)
		s.publish(ctx, b.UserID, events.Event{Type: events.TypeJobUpdated, JobID: id, Status: string(mockpdf.StatusProcessing)})
	}

	found, err := s.Catalog.GetMany(ctx, b.ProductIDs)
	if err != nil {
		s.failBundle(ctx, b, fmt.Errorf("catalog lookup: %w", err), &startedAt)
		return nil
	}
	designs := make([]catalog.Design, 0, len(b.ProductIDs))
	for _, pid := range b.ProductIDs {
		d, ok := found[pid]
		if !ok {
			s.failBundle(ctx, b, fmt.Errorf("catalog lookup: design %s no longer available", pid), &startedAt)
			return nil
		}
		designs = append(designs, d)
	}

	data, err := RenderBundle(b, designs)
	if err != nil {
		s.failBundle(ctx, b, err, &startedAt)
		return nil
	}
	pages, err := CountPages(data)
	if err != nil {
		s.failBundle(ctx, b, fmt.Errorf("render verify: %w", err), &startedAt)
		return nil
	}
	if pages != len(designs) {
		s.failBundle(ctx, b, fmt.Errorf("render verify: %d pages for %d designs", pages, len(designs)), &startedAt)
		return nil
	}

	if s.Store == nil {
		s.failBundle(ctx, b, errors.New("storage: object store not configured"), &startedAt)
		return nil
	}
	key := object.BundleKey(b.UserID, b.ID)
	if _, err := s.Store.Put(ctx, key, "application/pdf", bytes.NewReader(data)); err != nil {
		s.failBundle(ctx, b, fmt.Errorf("storage: %w", err), &startedAt)
		return nil
	}

	completedAt := time.Now().UTC()
	if err := s.Repo.UpdateStatus(ctx, id, StatusUpdate{
		Status:      mockpdf.StatusCompleted,
		DownloadKey: &key,
		PageCount:   &pages,
		CompletedAt: &completedAt,
	}); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("set completed: %w", err)
	}

	metrics.IncBundleJobCompleted()
	metrics.ObserveGenerationDurationMs(durationMs(&startedAt, &completedAt))
	b.Status = mockpdf.StatusCompleted
	s.logStatus(ctx, b, "processing->completed", map[string]any{
		"page_count":  pages,
		"duration_ms": durationMs(&startedAt, &completedAt),
	})
	s.publish(ctx, b.UserID, events.Event{Type: events.TypeJobUpdated, JobID: id, Status: string(mockpdf.StatusCompleted)})
	s.publish(ctx, b.UserID, events.Event{Type: events.TypeDownloadsInvalidated, JobID: id})
	return nil
}

func (s *Service) failBundle(ctx context.Context, b Bundle, err error, startedAt *time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	completedAt := time.Now().UTC()
	if updateErr := s.Repo.UpdateStatus(context.Background(), b.ID, StatusUpdate{
		Status:       mockpdf.StatusFailed,
		ErrorCode:    &code,
		ErrorMessage: &msg,
		CompletedAt:  &completedAt,
	}); updateErr != nil {
		telemetry.Error("bundle.fail_update_failed", map[string]any{"job_id": b.ID, "error": updateErr.Error(), "cause": msg})
	}
	metrics.IncBundleJobFailed(code)
	if startedAt != nil {
		metrics.ObserveGenerationDurationMs(durationMs(startedAt, &completedAt))
	}
	b.Status = mockpdf.StatusFailed
	s.logStatus(ctx, b, "processing->failed", map[string]any{
		"error_code":  code,
		"error":       msg,
		"duration_ms": durationMs(startedAt, &completedAt),
	})
	s.publish(ctx, b.UserID, events.Event{Type: events.TypeJobUpdated, JobID: b.ID, Status: string(mockpdf.StatusFailed)})
}

func (s *Service) logStatus(ctx context.Context, b Bundle, transition string, extra map[string]any) {
	fields := map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"user_id":           b.UserID,
		"job_id":            b.ID,
		"status":            string(b.Status),
		"status_transition": transition,
	}
	for k, v := range extra {
		fields[k] = v
	}
	telemetry.Info("bundle.status", fields)
}

func (s *Service) publish(ctx context.Context, userID string, ev events.Event) {
	if s.Events == nil {
		return
	}
	ev.At = time.Now().UTC()
	if err := s.Events.Publish(ctx, userID, ev); err != nil {
		telemetry.Warn("bundle.publish_failed", map[string]any{"job_id": ev.JobID, "type": ev.Type, "error": err.Error()})
	}
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "catalog"):
		return ErrorCodeCatalog
	case strings.Contains(msg, "render"):
		return ErrorCodeRender
	case strings.Contains(msg, "storage"):
		return ErrorCodeStorage
	default:
		return ErrorCodeInternal
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
