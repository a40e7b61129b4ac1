package models

import (
	"time"

	"github.com/google/uuid"
)

// VersionInfo is one row of catalog.versions.
type VersionInfo struct {
	VersionID   int
	VersionName string
	Fingerprint string
	RunID       uuid.UUID
	CreatedAt   time.Time
	IsActive    bool
	SourceDir   string
	Description string
}

// ImportStats counts the rows written by one import, per table.
type ImportStats struct {
	Datasets   int
	Dimensions int
	Variables  int
	Attributes int
	References int
	Jobs       int
}

func (s ImportStats) Total() int {
	return s.Datasets + s.Dimensions + s.Variables + s.Attributes + s.References + s.Jobs
}
