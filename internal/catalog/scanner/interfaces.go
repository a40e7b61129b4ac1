package scanner

import (
	"context"

	"github.com/google/uuid"

	"github.com/cfcheck-fixtures/internal/catalog/importer"
	"github.com/cfcheck-fixtures/internal/common/discord"
	catalogmodels "github.com/cfcheck-fixtures/pkg/catalog/models"
	cimodels "github.com/cfcheck-fixtures/pkg/ci/models"
)

type VersionChecker interface {
	HasNewerVersion(ctx context.Context, fingerprint string) (bool, error)
	CreateNewVersion(ctx context.Context, versionName, fingerprint string, runID uuid.UUID, sourceDir string) (int, error)
	ActivateVersion(ctx context.Context, versionID int) error
}

type Importer interface {
	Import(ctx context.Context, versionID int, sources []importer.Source, desc *cimodels.Descriptor) (catalogmodels.ImportStats, error)
}

// ImportLocker keeps maintenance from deleting versions mid-import.
type ImportLocker interface {
	LockForImport()
	UnlockAfterImport()
}

type Notifier interface {
	SendImportSummary(ctx context.Context, s discord.ImportSummary) error
}
