package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cfcheck-fixtures/pkg/catalog/models"
)

var ErrVersionNotFound = errors.New("version not found")

type VersionChecker struct {
	db *DB
}

func NewVersionChecker(db *DB) *VersionChecker {
	return &VersionChecker{db: db}
}

func (vc *VersionChecker) GetActiveVersion(ctx context.Context) (*models.VersionInfo, error) {
	query := `
		SELECT version_id, version_name, fingerprint, run_id, created_at, is_active, source_dir, COALESCE(description, '')
		FROM catalog.versions
		WHERE is_active = true
		LIMIT 1
	`

	var version models.VersionInfo
	err := vc.db.conn.QueryRowContext(ctx, query).Scan(
		&version.VersionID,
		&version.VersionName,
		&version.Fingerprint,
		&version.RunID,
		&version.CreatedAt,
		&version.IsActive,
		&version.SourceDir,
		&version.Description,
	)

	if errors.Is(err, sql.ErrNoRows) {
		vc.db.logger.Info("No active version found in database")
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying active version: %w", err)
	}

	vc.db.logger.Debug("Found active version",
		"version_id", version.VersionID,
		"version_name", version.VersionName,
		"fingerprint", version.Fingerprint)

	return &version, nil
}

// HasNewerVersion reports whether fingerprint differs from the active
// version's. With no active version it is always true.
func (vc *VersionChecker) HasNewerVersion(ctx context.Context, fingerprint string) (bool, error) {
	activeVersion, err := vc.GetActiveVersion(ctx)
	if err != nil {
		return false, fmt.Errorf("getting active version: %w", err)
	}

	if activeVersion == nil {
		vc.db.logger.Info("No active version found, new import needed")
		return true, nil
	}

	isNewer := fingerprint != activeVersion.Fingerprint

	vc.db.logger.Info("Version comparison",
		"fingerprint", fingerprint,
		"active_fingerprint", activeVersion.Fingerprint,
		"is_newer", isNewer)

	return isNewer, nil
}

// CreateNewVersion inserts an inactive version row and returns its id.
func (vc *VersionChecker) CreateNewVersion(ctx context.Context, versionName, fingerprint string, runID uuid.UUID, sourceDir string) (int, error) {
	tx, err := vc.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var versionID int
	query := `
		INSERT INTO catalog.versions (version_name, fingerprint, run_id, is_active, source_dir, description)
		VALUES ($1, $2, $3, false, $4, $5)
		RETURNING version_id
	`

	description := fmt.Sprintf("Fixtures imported from %s (run %s)", sourceDir, runID)
	err = tx.QueryRowContext(ctx, query, versionName, fingerprint, runID, sourceDir, description).Scan(&versionID)
	if err != nil {
		return 0, fmt.Errorf("creating version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing transaction: %w", err)
	}

	vc.db.logger.Info("Created new version",
		"version_id", versionID,
		"version_name", versionName,
		"run_id", runID)

	return versionID, nil
}

func (vc *VersionChecker) ActivateVersion(ctx context.Context, versionID int) error {
	tx, err := vc.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "UPDATE catalog.versions SET is_active = false WHERE is_active = true")
	if err != nil {
		return fmt.Errorf("deactivating versions: %w", err)
	}

	result, err := tx.ExecContext(ctx, "UPDATE catalog.versions SET is_active = true WHERE version_id = $1", versionID)
	if err != nil {
		return fmt.Errorf("activating version: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %d", ErrVersionNotFound, versionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	vc.db.logger.Info("Activated version", "version_id", versionID)
	return nil
}

// ListVersions returns every version, newest first.
func (vc *VersionChecker) ListVersions(ctx context.Context) ([]models.VersionInfo, error) {
	rows, err := vc.db.conn.QueryContext(ctx, `
		SELECT version_id, version_name, fingerprint, run_id, created_at, is_active, source_dir, COALESCE(description, '')
		FROM catalog.versions
		ORDER BY created_at DESC, version_id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []models.VersionInfo
	for rows.Next() {
		var v models.VersionInfo
		if err := rows.Scan(&v.VersionID, &v.VersionName, &v.Fingerprint, &v.RunID,
			&v.CreatedAt, &v.IsActive, &v.SourceDir, &v.Description); err != nil {
			return nil, fmt.Errorf("scanning version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}
