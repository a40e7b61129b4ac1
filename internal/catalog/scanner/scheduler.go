// Package scanner watches a fixture directory and imports it into the
// catalog as a new version whenever its contents change.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/cfcheck-fixtures/internal/catalog/fetcher"
	"github.com/cfcheck-fixtures/internal/catalog/importer"
	"github.com/cfcheck-fixtures/internal/cdl/inspect"
	"github.com/cfcheck-fixtures/internal/cdl/parser"
	"github.com/cfcheck-fixtures/internal/ci"
	"github.com/cfcheck-fixtures/internal/common/db"
	"github.com/cfcheck-fixtures/internal/common/discord"
	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/internal/fixtures"
	catalogmodels "github.com/cfcheck-fixtures/pkg/catalog/models"
	cimodels "github.com/cfcheck-fixtures/pkg/ci/models"
)

// descriptorName is looked up in the fixture directory when no descriptor
// path is configured.
const descriptorName = ".travis.yml"

type Config struct {
	Dir           string
	URLs          []string
	CIDescriptor  string
	CheckInterval time.Duration
	DebounceDelay time.Duration
}

// Result describes one check.
type Result struct {
	Fingerprint string
	Imported    bool
	VersionID   int
	VersionName string
	RunID       uuid.UUID
	Stats       catalogmodels.ImportStats
	Unresolved  int
}

type Scheduler struct {
	config         Config
	versionChecker VersionChecker
	importer       Importer
	downloader     fetcher.Downloader
	locker         ImportLocker
	notifier       Notifier
	parser         *parser.Parser
	logger         logger.Logger

	checkMu sync.Mutex

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

type Option func(*Scheduler)

// WithImportLocker makes every import hold the given lock.
func WithImportLocker(l ImportLocker) Option {
	return func(s *Scheduler) { s.locker = l }
}

func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

func WithDownloader(d fetcher.Downloader) Option {
	return func(s *Scheduler) { s.downloader = d }
}

const (
	DefaultCheckInterval = 5 * time.Minute
	DefaultDebounceDelay = 500 * time.Millisecond
)

// ErrDuplicateDataset is returned when two fixture files declare the same
// dataset name.
var ErrDuplicateDataset = errors.New("duplicate dataset name")

// NewScheduler wires a scheduler to the catalog database.
func NewScheduler(config Config, database *db.DB, logger logger.Logger, opts ...Option) *Scheduler {
	return newScheduler(config, db.NewVersionChecker(database), NewDBImporter(database), logger, opts...)
}

func newScheduler(config Config, vc VersionChecker, imp Importer, logger logger.Logger, opts ...Option) *Scheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}
	s := &Scheduler{
		config:         config,
		versionChecker: vc,
		importer:       imp,
		downloader:     fetcher.NewHTTPDownloader(logger),
		parser:         parser.New(logger),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs an initial check, then checks on every tick and after file
// changes settle. It blocks until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info("Starting fixture scanner",
		"dir", s.config.Dir,
		"check_interval", s.config.CheckInterval,
		"urls", len(s.config.URLs))

	if _, err := s.CheckNow(ctx); err != nil {
		s.logger.Error("Initial check failed", "error", err)
	}

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	var (
		events  <-chan fsnotify.Event
		errs    <-chan error
		watcher *fsnotify.Watcher
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("File watching disabled", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Add(s.config.Dir); err != nil {
			s.logger.Warn("File watching disabled", "dir", s.config.Dir, "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	debounce := time.NewTimer(s.config.DebounceDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scanner stopped")
			return nil
		case <-ticker.C:
			if _, err := s.CheckNow(ctx); err != nil {
				s.logger.Error("Scheduled check failed", "error", err)
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if IsTracked(ev.Name) && ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debug("Fixture change detected", "file", ev.Name, "op", ev.Op.String())
				debounce.Reset(s.config.DebounceDelay)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Warn("File watcher error", "error", err)
		case <-debounce.C:
			if _, err := s.CheckNow(ctx); err != nil {
				s.logger.Error("Change-triggered check failed", "error", err)
			}
		}
	}
}

func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler not running")
	}

	if s.cancel != nil {
		s.cancel()
	}

	s.running = false
	return nil
}

// CheckNow fetches remote fixtures, fingerprints the directory and imports
// it as a new active version when the fingerprint changed.
func (s *Scheduler) CheckNow(ctx context.Context) (Result, error) {
	s.checkMu.Lock()
	defer s.checkMu.Unlock()

	var result Result

	if len(s.config.URLs) > 0 {
		if _, err := fetcher.FetchAll(ctx, s.downloader, s.config.URLs, s.config.Dir); err != nil {
			return result, fmt.Errorf("fetching fixtures: %w", err)
		}
	}

	descPath := s.descriptorPath()
	fingerprint, err := Fingerprint(s.config.Dir, descPath)
	if err != nil {
		return result, fmt.Errorf("fingerprinting fixtures: %w", err)
	}
	result.Fingerprint = fingerprint

	hasNewer, err := s.versionChecker.HasNewerVersion(ctx, fingerprint)
	if err != nil {
		return result, fmt.Errorf("checking version: %w", err)
	}
	if !hasNewer {
		s.logger.Debug("No fixture changes", "fingerprint", fingerprint)
		return result, nil
	}

	// parse before creating a version so a broken file leaves no row behind
	sources, err := s.loadSources(ctx)
	if err != nil {
		return result, err
	}
	desc, err := s.loadDescriptor(descPath)
	if err != nil {
		return result, err
	}
	for _, src := range sources {
		result.Unresolved += inspect.Inspect(src.Dataset).Summary.UnresolvedReferences
	}

	if s.locker != nil {
		s.locker.LockForImport()
		defer s.locker.UnlockAfterImport()
	}

	result.RunID = uuid.New()
	result.VersionName = fmt.Sprintf("fixtures_%s", time.Now().UTC().Format("2006-01-02_15:04:05"))

	s.logger.Info("Fixture changes detected, starting import",
		"fingerprint", fingerprint,
		"run_id", result.RunID,
		"datasets", len(sources))

	result.VersionID, err = s.versionChecker.CreateNewVersion(ctx, result.VersionName, fingerprint, result.RunID, s.config.Dir)
	if err != nil {
		return result, fmt.Errorf("creating version: %w", err)
	}

	result.Stats, err = s.importer.Import(ctx, result.VersionID, sources, desc)
	if err != nil {
		s.logger.Error("Import failed, version will remain inactive",
			"version_id", result.VersionID,
			"run_id", result.RunID,
			"error", err)
		s.notify(ctx, result, err)
		return result, fmt.Errorf("importing fixtures: %w", err)
	}

	if err := s.versionChecker.ActivateVersion(ctx, result.VersionID); err != nil {
		return result, fmt.Errorf("activating version: %w", err)
	}
	result.Imported = true

	s.logger.Info("Successfully imported and activated fixture catalog",
		"version_id", result.VersionID,
		"version_name", result.VersionName,
		"rows", result.Stats.Total())
	s.notify(ctx, result, nil)

	return result, nil
}

func (s *Scheduler) notify(ctx context.Context, r Result, importErr error) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.SendImportSummary(ctx, discord.ImportSummary{
		VersionName: r.VersionName,
		RunID:       r.RunID.String(),
		SourceDir:   s.config.Dir,
		Datasets:    r.Stats.Datasets,
		Jobs:        r.Stats.Jobs,
		Unresolved:  r.Unresolved,
		Err:         importErr,
	})
	if err != nil {
		s.logger.Warn("Failed to send import summary", "error", err)
	}
}

func (s *Scheduler) descriptorPath() string {
	if s.config.CIDescriptor != "" {
		return s.config.CIDescriptor
	}
	p := filepath.Join(s.config.Dir, descriptorName)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// loadDescriptor falls back to the shipped descriptor when path is empty.
func (s *Scheduler) loadDescriptor(path string) (*cimodels.Descriptor, error) {
	if path == "" {
		return ci.Default(), nil
	}
	desc, err := ci.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading CI descriptor: %w", err)
	}
	return desc, nil
}

func (s *Scheduler) loadSources(ctx context.Context) ([]importer.Source, error) {
	paths, err := fixtures.CDLFiles(s.config.Dir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, errors.New("no .cdl files in fixture directory")
	}

	sources := make([]importer.Source, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for _, p := range paths {
		ds, err := s.parser.ParseFile(ctx, p)
		if err != nil {
			return nil, err
		}
		if first, ok := seen[ds.Name]; ok {
			return nil, fmt.Errorf("%w: %q declared by %s and %s",
				ErrDuplicateDataset, ds.Name, first, filepath.Base(p))
		}
		seen[ds.Name] = filepath.Base(p)
		sources = append(sources, importer.Source{FileName: filepath.Base(p), Dataset: ds})
	}
	return sources, nil
}

type dbImporter struct {
	db *db.DB
}

// NewDBImporter returns an Importer that writes through importer.Importer.
func NewDBImporter(database *db.DB) Importer {
	return dbImporter{db: database}
}

func (d dbImporter) Import(ctx context.Context, versionID int, sources []importer.Source, desc *cimodels.Descriptor) (catalogmodels.ImportStats, error) {
	return importer.NewImporter(d.db, versionID).Import(ctx, sources, desc)
}
