package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"ingestion-service/internal/repository"
)

// SessionSweeper removes import sessions that outlived their TTL. Completed
// and failed sessions accumulate otherwise, since nothing cleans them up
// implicitly.
type SessionSweeper struct {
	sessions *repository.SessionRepository
	logger   *logrus.Logger
	interval time.Duration
	ttl      time.Duration
	stopCh   chan struct{}
}

// NewSessionSweeper creates a new session sweeper
func NewSessionSweeper(sessions *repository.SessionRepository, logger *logrus.Logger, ttl time.Duration) *SessionSweeper {
	return &SessionSweeper{
		sessions: sessions,
		logger:   logger,
		interval: time.Hour,
		ttl:      ttl,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the sweep loop
func (j *SessionSweeper) Start(ctx context.Context) {
	j.logger.Info("Session sweeper started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			j.sweep(ctx)
		case <-j.stopCh:
			j.logger.Info("Session sweeper stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Session sweeper context cancelled")
			return
		}
	}
}

// Stop signals the job to stop
func (j *SessionSweeper) Stop() {
	close(j.stopCh)
}

func (j *SessionSweeper) sweep(ctx context.Context) {
	deleted, err := j.sessions.DeleteExpired(ctx, j.ttl)
	if err != nil {
		j.logger.Errorf("Failed to sweep expired import sessions: %v", err)
		return
	}
	if deleted > 0 {
		j.logger.Infof("Swept %d expired import sessions", deleted)
	}
}
