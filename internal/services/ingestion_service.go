package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/identifier"
	"ingestion-service/internal/models"
	"ingestion-service/internal/parser"
	"ingestion-service/internal/transformer"
	"ingestion-service/internal/validator"
)

// DefaultBatchSize bounds transaction size and sets the checkpoint
// granularity for resumable runs.
const DefaultBatchSize = 10

const (
	DefaultJobTimeBudget    = 10 * time.Minute
	DefaultHeartbeatTimeout = 2 * time.Minute
	heartbeatInterval       = 15 * time.Second
)

var (
	ErrSessionNotFound          = errors.New("import session not found")
	ErrSessionNotResumable      = errors.New("import session is not resumable")
	ErrSessionAlreadyProcessing = errors.New("import session is already being processed")
	ErrValidationErrorsPresent  = errors.New("import session has rows with validation errors")
	ErrNoValidRows              = errors.New("import session has no valid rows to process")
)

// SessionStore is the persistence surface for import sessions.
type SessionStore interface {
	Create(ctx context.Context, session *models.ImportSession) error
	GetByID(ctx context.Context, tenantID string, sessionID uuid.UUID) (*models.ImportSession, error)
	List(ctx context.Context, tenantID string, page, limit int) ([]models.ImportSession, int64, error)
	MarkProcessing(ctx context.Context, tenantID string, sessionID uuid.UUID, staleBefore time.Time) (bool, error)
	Heartbeat(ctx context.Context, sessionID uuid.UUID) error
	UpdateProgress(ctx context.Context, sessionID uuid.UUID, percent int, operation string, currentBatch, totalBatches int) error
	Finish(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, operation, errorMessage string, elapsed time.Duration) error
}

// CatalogStore is the persistence surface for catalog lookups and the atomic
// batch commit.
type CatalogStore interface {
	GetCategoryByID(ctx context.Context, tenantID string, categoryID uuid.UUID) (*models.Category, error)
	GetVendorByCode(ctx context.Context, tenantID, code string) (*models.Vendor, error)
	GetOrCreateAttribute(ctx context.Context, tenantID, name string) (*models.AttributeDefinition, error)
	ProductSlugExists(ctx context.Context, tenantID, slug string) (bool, error)
	VariantSKUExists(ctx context.Context, tenantID, sku string) (bool, error)
	CommitBatch(ctx context.Context, session *models.ImportSession, products []*models.Product, lastRowIndex int) (models.ImportCounts, error)
}

// IDSource mints identifier scopes. Each run issues slugs and SKUs through
// its own scope so identifiers minted for rows whose batch has not committed
// yet cannot repeat within the run.
type IDSource interface {
	Scope() identifier.Issuer
}

// EventPublisher emits import lifecycle events. Implementations must be safe
// to call from the background run goroutine.
type EventPublisher interface {
	ImportStarted(ctx context.Context, tenantID string, session *models.ImportSession)
	ImportCompleted(ctx context.Context, tenantID string, session *models.ImportSession, counts models.ImportCounts)
	ImportFailed(ctx context.Context, tenantID string, sessionID uuid.UUID, reason string)
	ProductCreated(ctx context.Context, tenantID string, product *models.Product)
}

// Config carries the tunables for the ingestion pipeline.
type Config struct {
	BatchSize        int
	JobTimeBudget    time.Duration
	HeartbeatTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.JobTimeBudget <= 0 {
		c.JobTimeBudget = DefaultJobTimeBudget
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	return c
}

// IngestionService owns the import pipeline end to end: validation sessions,
// background processing runs, resumes, and status reads. One session is
// processed by at most one active run at a time.
type IngestionService struct {
	sessions  SessionStore
	catalog   CatalogStore
	validator *validator.Validator
	ids       IDSource
	events    EventPublisher
	logger    *logrus.Logger
	cfg       Config

	activeJobs map[uuid.UUID]context.CancelFunc
	mu         sync.Mutex
}

func NewIngestionService(sessions SessionStore, catalog CatalogStore, ids IDSource, events EventPublisher, logger *logrus.Logger, cfg Config) *IngestionService {
	return &IngestionService{
		sessions:   sessions,
		catalog:    catalog,
		validator:  validator.New(catalog, logger),
		ids:        ids,
		events:     events,
		logger:     logger,
		cfg:        cfg.withDefaults(),
		activeJobs: make(map[uuid.UUID]context.CancelFunc),
	}
}

// Validate parses and validates an upload. Unless dryRun is set, the report
// and the valid rows are stored as a new PENDING session whose id correlates
// the later process/status/resume calls.
func (s *IngestionService) Validate(ctx context.Context, tenantID string, file io.Reader, filename string, categoryID uuid.UUID, dryRun bool) (*models.ValidationReport, error) {
	rows, err := parser.Parse(file, filename)
	if err != nil {
		return nil, err
	}

	report, err := s.validator.Validate(ctx, tenantID, categoryID, rows)
	if err != nil {
		return nil, err
	}

	if dryRun || report.TotalRows == 0 {
		return report, nil
	}

	// A missing category produces a report with a single error and no
	// session; there is nothing to process later.
	if len(report.Errors) == 1 && report.Errors[0].Field == "category_id" {
		return report, nil
	}

	session := &models.ImportSession{
		ID:          uuid.New(),
		TenantID:    tenantID,
		CategoryID:  categoryID,
		Filename:    filename,
		Status:      models.SessionStatusPending,
		TotalRows:   report.TotalRows,
		ValidRows:   report.ValidRows,
		ErrorRows:   report.ErrorRows,
		WarningRows: report.WarningRows,
	}
	session.SetRows(report.ValidData)
	session.SetIssues(report.Errors, report.Warnings)

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create import session: %w", err)
	}

	report.SessionID = session.ID.String()
	return report, nil
}

// Process starts the background run for a validated PENDING session. Sessions
// with error rows require an explicit proceedWithValidOnly.
func (s *IngestionService) Process(ctx context.Context, tenantID string, sessionID uuid.UUID, req models.ProcessRequest) error {
	session, err := s.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if session.Status != models.SessionStatusPending {
		if session.Status == models.SessionStatusProcessing {
			return ErrSessionAlreadyProcessing
		}
		return ErrSessionNotResumable
	}
	if session.ErrorRows > 0 && !req.ProceedWithValidOnly {
		return ErrValidationErrorsPresent
	}
	if session.ValidRows == 0 {
		return ErrNoValidRows
	}

	return s.startRun(ctx, tenantID, sessionID)
}

// Resume restarts a timed-out run from its checkpoint. It is legal from
// TIMEOUT, and from a PROCESSING session whose worker stopped heartbeating
// (a crashed run).
func (s *IngestionService) Resume(ctx context.Context, tenantID string, sessionID uuid.UUID) error {
	session, err := s.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	switch session.Status {
	case models.SessionStatusTimeout:
	case models.SessionStatusProcessing:
		if session.LastHeartbeatAt != nil && time.Since(*session.LastHeartbeatAt) < s.cfg.HeartbeatTimeout {
			return ErrSessionAlreadyProcessing
		}
	default:
		return ErrSessionNotResumable
	}

	return s.startRun(ctx, tenantID, sessionID)
}

// Status returns the latest session snapshot. Safe to call concurrently with
// an in-flight run; the snapshot may be momentarily stale but never torn.
func (s *IngestionService) Status(ctx context.Context, tenantID string, sessionID uuid.UUID) (*models.ImportSession, error) {
	session, err := s.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	session.RowData = nil
	return session, nil
}

// List returns the tenant's sessions, newest first.
func (s *IngestionService) List(ctx context.Context, tenantID string, page, limit int) ([]models.ImportSession, int64, error) {
	return s.sessions.List(ctx, tenantID, page, limit)
}

// startRun claims the session and launches the background run goroutine.
func (s *IngestionService) startRun(ctx context.Context, tenantID string, sessionID uuid.UUID) error {
	staleBefore := time.Now().Add(-s.cfg.HeartbeatTimeout)
	claimed, err := s.sessions.MarkProcessing(ctx, tenantID, sessionID, staleBefore)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrSessionAlreadyProcessing
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.activeJobs[sessionID] = cancel
	s.mu.Unlock()

	go s.run(jobCtx, tenantID, sessionID)
	return nil
}

// ActiveRuns reports how many runs this instance currently owns.
func (s *IngestionService) ActiveRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeJobs)
}

// Shutdown cancels all in-flight runs. Sessions left mid-run become eligible
// for resume once their heartbeat goes stale.
func (s *IngestionService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.activeJobs {
		cancel()
	}
}

// run drives one processing run to a terminal state: transform the remaining
// valid rows, commit them in fixed-size batches, advance the checkpoint after
// every durable commit, and publish a fresh progress snapshot per batch. The
// wall-clock budget is checked between batches so a long run transitions to
// TIMEOUT instead of being killed mid-transaction.
func (s *IngestionService) run(ctx context.Context, tenantID string, sessionID uuid.UUID) {
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.activeJobs[sessionID]; ok {
			cancel()
			delete(s.activeJobs, sessionID)
		}
		s.mu.Unlock()
	}()

	log := s.logger.WithFields(logrus.Fields{
		"component":  "ingestion",
		"session_id": sessionID,
		"tenant_id":  tenantID,
	})

	session, err := s.sessions.GetByID(ctx, tenantID, sessionID)
	if err != nil || session == nil {
		log.WithError(err).Error("Failed to load session for processing")
		return
	}

	start := time.Now()
	deadline := start.Add(s.cfg.JobTimeBudget)

	stopHeartbeat := s.startHeartbeat(ctx, sessionID)
	defer stopHeartbeat()

	if s.events != nil {
		s.events.ImportStarted(ctx, tenantID, session)
	}

	rows, err := session.Rows()
	if err != nil {
		s.fail(ctx, tenantID, sessionID, fmt.Sprintf("failed to decode session rows: %v", err), start, log)
		return
	}

	category, err := s.catalog.GetCategoryByID(ctx, tenantID, session.CategoryID)
	if err != nil || category == nil {
		s.fail(ctx, tenantID, sessionID, fmt.Sprintf("category %s is no longer available", session.CategoryID), start, log)
		return
	}

	// A fresh identifier scope per run: rows transformed ahead of their
	// batch commit reserve their slugs and SKUs in memory, so repeated
	// names within a batch get suffixed instead of colliding at commit.
	tr := transformer.New(s.catalog, s.ids.Scope(), s.logger)

	totalValid := len(rows)
	remaining := remainingRows(rows, session.LastCommittedRowIndex)
	committed := totalValid - len(remaining)
	totalBatches := (totalValid + s.cfg.BatchSize - 1) / s.cfg.BatchSize
	currentBatch := committed / s.cfg.BatchSize

	log.WithFields(logrus.Fields{
		"total_rows":    totalValid,
		"remaining":     len(remaining),
		"total_batches": totalBatches,
	}).Info("Import run started")

	totals := session.Counts()

	for len(remaining) > 0 {
		if ctx.Err() != nil {
			s.timeout(tenantID, sessionID, currentBatch, totalBatches, start, log)
			return
		}
		if time.Now().After(deadline) {
			s.timeout(tenantID, sessionID, currentBatch, totalBatches, start, log)
			return
		}

		size := s.cfg.BatchSize
		if size > len(remaining) {
			size = len(remaining)
		}
		batch := remaining[:size]
		remaining = remaining[size:]
		currentBatch++

		_ = s.sessions.UpdateProgress(ctx, sessionID,
			percent(committed, totalValid),
			fmt.Sprintf("Transforming batch %d of %d", currentBatch, totalBatches),
			currentBatch, totalBatches)

		products := make([]*models.Product, 0, len(batch))
		for _, row := range batch {
			product, err := tr.Transform(ctx, tenantID, category, row)
			if err != nil {
				if ctx.Err() != nil {
					s.timeout(tenantID, sessionID, currentBatch-1, totalBatches, start, log)
					return
				}
				s.fail(ctx, tenantID, sessionID, err.Error(), start, log)
				return
			}
			products = append(products, product)
		}

		lastRowIndex := batch[len(batch)-1].Index
		counts, err := s.catalog.CommitBatch(ctx, session, products, lastRowIndex)
		if err != nil {
			// A cancelled context (shutdown mid-commit) is transient; the
			// session must stay resumable rather than go FAILED.
			if ctx.Err() != nil {
				s.timeout(tenantID, sessionID, currentBatch-1, totalBatches, start, log)
				return
			}
			s.fail(ctx, tenantID, sessionID, fmt.Sprintf("batch %d commit failed: %v", currentBatch, err), start, log)
			return
		}

		totals.Add(counts)
		committed += len(batch)

		_ = s.sessions.UpdateProgress(ctx, sessionID,
			percent(committed, totalValid),
			fmt.Sprintf("Committed batch %d of %d", currentBatch, totalBatches),
			currentBatch, totalBatches)

		if s.events != nil {
			for _, product := range products {
				s.events.ProductCreated(ctx, tenantID, product)
			}
		}
	}

	elapsed := time.Since(start)
	if err := s.sessions.Finish(ctx, sessionID, models.SessionStatusCompleted, "Import completed", "", elapsed); err != nil {
		log.WithError(err).Error("Failed to record completion")
		return
	}

	log.WithFields(logrus.Fields{
		"products_created": totals.ProductsCreated,
		"variants_created": totals.VariantsCreated,
		"elapsed_ms":       elapsed.Milliseconds(),
	}).Info("Import run completed")

	if s.events != nil {
		session.Status = models.SessionStatusCompleted
		s.events.ImportCompleted(context.Background(), tenantID, session, totals)
	}
}

// startHeartbeat keeps the session's liveness marker fresh while transforms
// and commits are in flight, so other instances do not treat this run as
// crashed.
func (s *IngestionService) startHeartbeat(ctx context.Context, sessionID uuid.UUID) func() {
	hbCtx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := s.sessions.Heartbeat(hbCtx, sessionID); err != nil {
					s.logger.WithField("component", "ingestion").WithError(err).Warn("Heartbeat update failed")
				}
			}
		}
	}()
	return cancel
}

func (s *IngestionService) fail(ctx context.Context, tenantID string, sessionID uuid.UUID, reason string, start time.Time, log *logrus.Entry) {
	if err := s.sessions.Finish(context.Background(), sessionID, models.SessionStatusFailed, "Import failed", reason, time.Since(start)); err != nil {
		log.WithError(err).Error("Failed to record failure")
	}
	log.WithField("reason", reason).Error("Import run failed")
	if s.events != nil {
		s.events.ImportFailed(context.Background(), tenantID, sessionID, reason)
	}
}

func (s *IngestionService) timeout(tenantID string, sessionID uuid.UUID, currentBatch, totalBatches int, start time.Time, log *logrus.Entry) {
	operation := fmt.Sprintf("Timed out after batch %d of %d", currentBatch, totalBatches)
	if err := s.sessions.Finish(context.Background(), sessionID, models.SessionStatusTimeout, operation, "", time.Since(start)); err != nil {
		log.WithError(err).Error("Failed to record timeout")
	}
	log.WithFields(logrus.Fields{
		"current_batch": currentBatch,
		"total_batches": totalBatches,
	}).Warn("Import run exceeded its time budget")
}

// remainingRows drops rows at or before the checkpoint; a resume never
// reprocesses a committed row.
func remainingRows(rows []models.Row, lastCommitted int) []models.Row {
	for i, row := range rows {
		if row.Index > lastCommitted {
			return rows[i:]
		}
	}
	return nil
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	p := done * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}
