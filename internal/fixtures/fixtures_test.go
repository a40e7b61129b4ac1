package fixtures

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cfcheck-fixtures/internal/common/logger"
)

func TestListIsSorted(t *testing.T) {
	got := List()
	want := []string{"climatology", "illegal-aux-coords", "multi-timeseries-profile"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d fixtures, got %d", len(want), len(got))
	}
	for i, f := range got {
		if f.Name != want[i] {
			t.Errorf("fixture %d: expected %s, got %s", i, want[i], f.Name)
		}
		if len(f.Source) == 0 {
			t.Errorf("fixture %s has no source", f.Name)
		}
	}
}

func TestGetAlias(t *testing.T) {
	f, err := Get("illegal-aux-cords")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if f.Name != "illegal-aux-coords" || !f.Invalid {
		t.Errorf("Expected invalid illegal-aux-coords fixture, got %+v", f.Name)
	}
}

func TestGetUnknown(t *testing.T) {
	_, err := Get("nope")
	if !errors.Is(err, ErrUnknownFixture) {
		t.Errorf("Expected ErrUnknownFixture, got %v", err)
	}
}

func TestLoadAllFixturesParse(t *testing.T) {
	l := NewLoader(logger.Nop())
	all, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 datasets, got %d", len(all))
	}
}

func TestMultiTimeseriesProfile(t *testing.T) {
	ds, err := NewLoader(logger.Nop()).Load(context.Background(), "multi-timeseries-profile")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ft, ok := ds.Attribute("featureType")
	if !ok || ft.String() != "timeSeriesProfile" {
		t.Errorf("Expected featureType timeSeriesProfile, got %q", ft.String())
	}
	station, ok := ds.Dimension("station")
	if !ok || station.Size != 3 {
		t.Errorf("Expected station dimension of 3, got %+v", station)
	}
	temp, ok := ds.Variable("temperature")
	if !ok {
		t.Fatal("temperature variable missing")
	}
	if got := temp.StringAttribute("coordinates"); got != "time lon lat alt" {
		t.Errorf("Unexpected coordinates %q", got)
	}
	fill, _ := temp.Attribute("_FillValue")
	if fill.Type != "float" {
		t.Errorf("Expected float _FillValue, got %s", fill.Type)
	}
}

func TestIllegalAuxCoordsFixture(t *testing.T) {
	ds, err := NewLoader(logger.Nop()).Load(context.Background(), "illegal-aux-coords")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	h, ok := ds.Variable("h_temp")
	if !ok {
		t.Fatal("h_temp missing")
	}
	if len(h.Dimensions) != 1 || h.Dimensions[0] != "xc" {
		t.Errorf("Expected h_temp(xc), got %v", h.Dimensions)
	}
	if got := h.StringAttribute("coordinates"); got != "lat lon" {
		t.Errorf("Expected coordinates \"lat lon\", got %q", got)
	}
}

func TestClimatologyFixture(t *testing.T) {
	ds, err := NewLoader(logger.Nop()).Load(context.Background(), "climatology")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	temp, _ := ds.Variable("temperature")
	if got := temp.StringAttribute("cell_methods"); got != "time: mean within days time: mean over days" {
		t.Errorf("Unexpected cell_methods %q", got)
	}
	bounds, ok := ds.Variable("climatology_bounds")
	if !ok || len(bounds.Data) != 8 {
		t.Errorf("Expected 8 climatology bound values")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, f := range List() {
		if err := os.WriteFile(filepath.Join(dir, f.Name+".cdl"), f.Source, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := NewLoader(logger.Nop()).LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(all) != 3 || all[0].Name != "climatology" {
		t.Errorf("Expected 3 datasets starting with climatology, got %d", len(all))
	}
}

func TestLoadDirReportsFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.cdl"), []byte("netcdf broken {"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewLoader(logger.Nop()).LoadDir(context.Background(), dir)
	if err == nil {
		t.Fatal("Expected error for broken fixture")
	}
	if want := "broken.cdl"; !strings.Contains(err.Error(), want) {
		t.Errorf("Expected error to name %s, got %v", want, err)
	}
}
