// Package fixtures holds the CDL test fixtures shipped with the binary and
// loads user fixtures from disk.
package fixtures

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cfcheck-fixtures/internal/cdl/parser"
	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

//go:embed cdl/*.cdl
var embedded embed.FS

var ErrUnknownFixture = errors.New("unknown fixture")

type Fixture struct {
	Name        string
	Description string
	// Invalid marks fixtures that deliberately break a convention.
	Invalid bool
	Source  []byte
}

type fixtureInfo struct {
	description string
	invalid     bool
}

var catalog = map[string]fixtureInfo{
	"multi-timeseries-profile": {
		description: "multi-station time series of vertical profiles",
	},
	"illegal-aux-coords": {
		description: "h_temp(xc) names lat and lon, dimensioned (yc, xc), as auxiliary coordinates",
		invalid:     true,
	},
	"climatology": {
		description: "climatological temperature with climatology_bounds",
	},
}

var aliases = map[string]string{
	"illegal-aux-cords": "illegal-aux-coords",
}

// List returns every embedded fixture sorted by name.
func List() []Fixture {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Fixture, 0, len(names))
	for _, name := range names {
		f, err := Get(name)
		if err != nil {
			// every catalog entry has an embedded file
			panic(err)
		}
		out = append(out, f)
	}
	return out
}

func Get(name string) (Fixture, error) {
	if target, ok := aliases[name]; ok {
		name = target
	}
	info, ok := catalog[name]
	if !ok {
		return Fixture{}, fmt.Errorf("%w: %s", ErrUnknownFixture, name)
	}
	src, err := embedded.ReadFile("cdl/" + name + ".cdl")
	if err != nil {
		return Fixture{}, fmt.Errorf("reading embedded fixture %s: %w", name, err)
	}
	return Fixture{
		Name:        name,
		Description: info.description,
		Invalid:     info.invalid,
		Source:      src,
	}, nil
}

type Loader struct {
	parser *parser.Parser
	logger logger.Logger
}

func NewLoader(log logger.Logger) *Loader {
	return &Loader{parser: parser.New(log), logger: log}
}

// Load parses an embedded fixture.
func (l *Loader) Load(ctx context.Context, name string) (*models.Dataset, error) {
	f, err := Get(name)
	if err != nil {
		return nil, err
	}
	ds, err := l.parser.ParseDataset(ctx, bytes.NewReader(f.Source))
	if err != nil {
		return nil, fmt.Errorf("parsing fixture %s: %w", f.Name, err)
	}
	return ds, nil
}

// LoadAll parses every embedded fixture in name order.
func (l *Loader) LoadAll(ctx context.Context) ([]*models.Dataset, error) {
	var out []*models.Dataset
	for _, f := range List() {
		ds, err := l.Load(ctx, f.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// LoadDir parses every *.cdl file directly under dir, sorted by file name.
func (l *Loader) LoadDir(ctx context.Context, dir string) ([]*models.Dataset, error) {
	paths, err := CDLFiles(dir)
	if err != nil {
		return nil, err
	}

	datasets := make([]*models.Dataset, 0, len(paths))
	for _, path := range paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		ds, err := l.parser.ParseFile(ctx, path)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	l.logger.Info("Loaded fixture directory", "dir", dir, "datasets", len(datasets))
	return datasets, nil
}

// CDLFiles lists the *.cdl files directly under dir in name order.
func CDLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fixture directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cdl") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
