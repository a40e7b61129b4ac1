package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cfcheck-fixtures/internal/common/db"
	"github.com/cfcheck-fixtures/internal/common/logger"
)

var ErrImportInProgress = errors.New("cannot perform cleanup: import in progress")

// cleaner is the part of Maintenance the scheduler drives.
type cleaner interface {
	CleanupOldVersions(ctx context.Context, keepInactiveVersions int) ([]VersionCleanupResult, error)
}

// CleanupScheduler handles periodic maintenance tasks
type CleanupScheduler struct {
	maintenance        cleaner
	logger             logger.Logger
	config             SchedulerConfig
	isRunning          bool
	mu                 sync.RWMutex
	cancelFn           context.CancelFunc
	importLock         sync.RWMutex // guards isImportInProgress
	isImportInProgress bool
	// runLock is held for a whole cleanup run; LockForImport waits on it.
	runLock sync.Mutex
}

type SchedulerConfig struct {
	CleanupInterval      time.Duration
	InitialDelay         time.Duration
	KeepInactiveVersions int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CleanupInterval:      24 * time.Hour,
		InitialDelay:         5 * time.Minute,
		KeepInactiveVersions: 1,
	}
}

func NewCleanupScheduler(database *db.DB, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	return newCleanupScheduler(New(database, logger), logger, config)
}

func newCleanupScheduler(c cleaner, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultSchedulerConfig().CleanupInterval
	}
	return &CleanupScheduler{
		maintenance: c,
		logger:      logger,
		config:      config,
	}
}

// Start launches the cleanup loop and returns immediately.
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"interval", s.config.CleanupInterval,
		"keep_inactive_versions", s.config.KeepInactiveVersions)

	go s.cleanupLoop(ctx)

	return nil
}

func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.logger.Info("Stopping cleanup scheduler")

	if s.cancelFn != nil {
		s.cancelFn()
	}

	s.isRunning = false
	s.logger.Info("Cleanup scheduler stopped")
}

func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LockForImport prevents cleanup operations during catalog imports. It
// blocks until a cleanup that is already running has finished.
func (s *CleanupScheduler) LockForImport() {
	s.runLock.Lock()
	defer s.runLock.Unlock()
	s.importLock.Lock()
	s.isImportInProgress = true
	s.importLock.Unlock()
	s.logger.Debug("Cleanup operations locked for import")
}

// UnlockAfterImport allows cleanup operations to resume
func (s *CleanupScheduler) UnlockAfterImport() {
	s.importLock.Lock()
	s.isImportInProgress = false
	s.importLock.Unlock()
	s.logger.Debug("Cleanup operations unlocked after import")
}

func (s *CleanupScheduler) canPerformCleanup() bool {
	s.importLock.RLock()
	defer s.importLock.RUnlock()
	return !s.isImportInProgress
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	// first run waits for a possible startup import
	initialDelay := time.NewTimer(s.config.InitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup loop stopping")
			return

		case <-initialDelay.C:
			s.performCleanup(ctx)

		case <-ticker.C:
			s.performCleanup(ctx)
		}
	}
}

func (s *CleanupScheduler) performCleanup(ctx context.Context) {
	s.logger.Info("Starting scheduled version cleanup",
		"keep_inactive_versions", s.config.KeepInactiveVersions)

	start := time.Now()
	results, err := s.runCleanup(ctx)
	duration := time.Since(start)

	if errors.Is(err, ErrImportInProgress) {
		s.logger.Debug("Skipping version cleanup - import in progress")
		return
	}
	if err != nil {
		s.logger.Error("Version cleanup failed",
			"error", err,
			"duration", duration)
		return
	}
	s.logger.Info("Version cleanup completed successfully",
		"duration", duration,
		"versions_processed", len(results))
}

// runCleanup holds runLock for the whole cleanup so an import cannot start
// while versions are being deleted.
func (s *CleanupScheduler) runCleanup(ctx context.Context) ([]VersionCleanupResult, error) {
	s.runLock.Lock()
	defer s.runLock.Unlock()

	if !s.canPerformCleanup() {
		return nil, ErrImportInProgress
	}
	return s.maintenance.CleanupOldVersions(ctx, s.config.KeepInactiveVersions)
}

// TriggerCleanup runs a cleanup now unless an import holds the lock.
func (s *CleanupScheduler) TriggerCleanup(ctx context.Context) ([]VersionCleanupResult, error) {
	s.logger.Info("Manual version cleanup triggered",
		"keep_inactive_versions", s.config.KeepInactiveVersions)
	return s.runCleanup(ctx)
}

func (s *CleanupScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	s.importLock.RLock()
	defer s.mu.RUnlock()
	defer s.importLock.RUnlock()

	return map[string]interface{}{
		"is_running":             s.isRunning,
		"is_import_in_progress":  s.isImportInProgress,
		"cleanup_interval":       s.config.CleanupInterval.String(),
		"keep_inactive_versions": s.config.KeepInactiveVersions,
	}
}
