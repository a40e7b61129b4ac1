package maintenance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cfcheck-fixtures/internal/common/db"
	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/pkg/catalog/models"
)

// VersionCleanupResult represents the result of version cleanup
type VersionCleanupResult struct {
	VersionID      int    `json:"version_id"`
	VersionName    string `json:"version_name"`
	RecordsDeleted int64  `json:"records_deleted"`
	CleanupStatus  string `json:"cleanup_status"`
}

// Maintenance handles database cleanup and maintenance operations
type Maintenance struct {
	db       *db.DB
	versions *db.VersionChecker
	logger   logger.Logger
}

func New(database *db.DB, logger logger.Logger) *Maintenance {
	return &Maintenance{
		db:       database,
		versions: db.NewVersionChecker(database),
		logger:   logger,
	}
}

// CleanupOldVersions removes inactive catalog versions, keeping the active
// version and the newest keepInactiveVersions inactive ones. Child rows go
// with their version through ON DELETE CASCADE.
func (m *Maintenance) CleanupOldVersions(ctx context.Context, keepInactiveVersions int) ([]VersionCleanupResult, error) {
	m.logger.Info("Starting cleanup of old catalog versions", "keep_inactive_versions", keepInactiveVersions)

	versions, err := m.versions.ListVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}

	var results []VersionCleanupResult
	for _, v := range versionsToDelete(versions, keepInactiveVersions) {
		res, err := m.db.DB().ExecContext(ctx,
			`DELETE FROM catalog.versions WHERE version_id = $1 AND is_active = false`, v.VersionID)
		if err != nil {
			return results, fmt.Errorf("deleting version %d: %w", v.VersionID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return results, fmt.Errorf("getting rows affected: %w", err)
		}

		status := "DELETED"
		if n == 0 {
			status = "SKIPPED"
		}
		results = append(results, VersionCleanupResult{
			VersionID:      v.VersionID,
			VersionName:    v.VersionName,
			RecordsDeleted: n,
			CleanupStatus:  status,
		})
		m.logger.Info("Cleaned up catalog version",
			"version_id", v.VersionID,
			"version_name", v.VersionName,
			"status", status)
	}

	// VACUUM cannot run inside a transaction
	if len(results) > 0 {
		if err := m.VacuumCatalogTables(ctx); err != nil {
			m.logger.Warn("Failed to vacuum catalog tables after cleanup", "error", err)
		}
	}

	return results, nil
}

// versionsToDelete picks the inactive versions past the newest keep.
func versionsToDelete(versions []models.VersionInfo, keep int) []models.VersionInfo {
	if keep < 0 {
		keep = 0
	}

	var inactive []models.VersionInfo
	for _, v := range versions {
		if !v.IsActive {
			inactive = append(inactive, v)
		}
	}
	sort.SliceStable(inactive, func(i, j int) bool {
		if inactive[i].CreatedAt.Equal(inactive[j].CreatedAt) {
			return inactive[i].VersionID > inactive[j].VersionID
		}
		return inactive[i].CreatedAt.After(inactive[j].CreatedAt)
	})

	if len(inactive) <= keep {
		return nil
	}
	return inactive[keep:]
}

// VacuumCatalogTables runs VACUUM ANALYZE on every catalog table. It must be
// called outside a transaction.
func (m *Maintenance) VacuumCatalogTables(ctx context.Context) error {
	m.logger.Info("Starting VACUUM ANALYZE of catalog tables")

	failed := 0
	for _, table := range db.Tables {
		start := time.Now()
		if _, err := m.db.DB().ExecContext(ctx, "VACUUM ANALYZE catalog."+table); err != nil {
			failed++
			m.logger.Error("Failed to vacuum catalog table",
				"table", table,
				"duration", time.Since(start),
				"error", err)
			continue
		}
		m.logger.Debug("Vacuumed catalog table", "table", table, "duration", time.Since(start))
	}

	m.logger.Info("VACUUM ANALYZE completed",
		"successful_tables", len(db.Tables)-failed,
		"total_tables", len(db.Tables))

	if failed > 0 {
		return fmt.Errorf("vacuum failed for %d out of %d catalog tables", failed, len(db.Tables))
	}
	return nil
}
