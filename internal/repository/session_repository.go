package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ingestion-service/internal/models"
)

// SessionRepository persists import sessions and their progress snapshots.
type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.ImportSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.CreatedAt = time.Now()
	session.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Create(session).Error
}

// GetByID retrieves a session scoped to its tenant. Returns nil when the
// session does not exist.
func (r *SessionRepository) GetByID(ctx context.Context, tenantID string, sessionID uuid.UUID) (*models.ImportSession, error) {
	var session models.ImportSession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, sessionID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// List returns sessions for a tenant, newest first.
func (r *SessionRepository) List(ctx context.Context, tenantID string, page, limit int) ([]models.ImportSession, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	query := r.db.WithContext(ctx).Model(&models.ImportSession{}).Where("tenant_id = ?", tenantID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.ImportSession
	err := query.
		Omit("row_data").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}

// MarkProcessing atomically claims a session for a worker. The claim succeeds
// only from a startable state: PENDING, TIMEOUT, or a PROCESSING row whose
// heartbeat went stale (a crashed worker). Returns false when another run
// holds the session or the status does not allow starting.
func (r *SessionRepository) MarkProcessing(ctx context.Context, tenantID string, sessionID uuid.UUID, staleBefore time.Time) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("tenant_id = ? AND id = ?", tenantID, sessionID).
		Where("status IN ? OR (status = ? AND (last_heartbeat_at IS NULL OR last_heartbeat_at < ?))",
			[]models.SessionStatus{models.SessionStatusPending, models.SessionStatusTimeout},
			models.SessionStatusProcessing, staleBefore).
		Updates(map[string]interface{}{
			"status":            models.SessionStatusProcessing,
			"started_at":        now,
			"last_heartbeat_at": now,
			"error_message":     "",
			"updated_at":        now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Heartbeat records liveness for an in-flight run.
func (r *SessionRepository) Heartbeat(ctx context.Context, sessionID uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"last_heartbeat_at": now,
			"updated_at":        now,
		}).Error
}

// UpdateProgress publishes one progress snapshot: percent, operation label and
// batch position move together in a single row update so readers never see a
// torn state.
func (r *SessionRepository) UpdateProgress(ctx context.Context, sessionID uuid.UUID, percent int, operation string, currentBatch, totalBatches int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{
			"progress_percent":  percent,
			"current_operation": operation,
			"current_batch":     currentBatch,
			"total_batches":     totalBatches,
			"last_heartbeat_at": now,
			"updated_at":        now,
		}).Error
}

// Finish records a terminal (or timeout) transition with its final fields.
func (r *SessionRepository) Finish(ctx context.Context, sessionID uuid.UUID, status models.SessionStatus, operation, errorMessage string, elapsed time.Duration) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":            status,
		"current_operation": operation,
		"error_message":     errorMessage,
		"elapsed_ms":        elapsed.Milliseconds(),
		"updated_at":        now,
	}
	if status == models.SessionStatusCompleted {
		updates["progress_percent"] = 100
		updates["completed_at"] = now
	}
	return r.db.WithContext(ctx).Model(&models.ImportSession{}).
		Where("id = ?", sessionID).
		Updates(updates).Error
}

// DeleteExpired removes sessions whose last update is older than the TTL.
// In-flight runs are skipped; a crashed PROCESSING row is reclaimed through
// the stale-heartbeat path instead.
func (r *SessionRepository) DeleteExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl)
	result := r.db.WithContext(ctx).
		Where("updated_at < ? AND status <> ?", cutoff, models.SessionStatusProcessing).
		Delete(&models.ImportSession{})
	return result.RowsAffected, result.Error
}
