package inspect

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cfcheck-fixtures/internal/common/logger"
	"github.com/cfcheck-fixtures/internal/fixtures"
	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

func load(t *testing.T, name string) *models.Dataset {
	t.Helper()
	ds, err := fixtures.NewLoader(logger.Nop()).Load(context.Background(), name)
	if err != nil {
		t.Fatalf("Load %s: %v", name, err)
	}
	return ds
}

func TestIllegalAuxCoords(t *testing.T) {
	report := Inspect(load(t, "illegal-aux-coords"))

	h, ok := report.Variable("h_temp")
	if !ok {
		t.Fatal("h_temp missing from report")
	}
	want := []Reference{
		{Attribute: "coordinates", Target: "lat", Exists: true, TargetDimensions: []string{"yc", "xc"}, Rule: RuleSubset},
		{Attribute: "coordinates", Target: "lon", Exists: true, TargetDimensions: []string{"yc", "xc"}, Rule: RuleSubset},
	}
	if diff := cmp.Diff(want, h.References); diff != "" {
		t.Errorf("h_temp references mismatch (-want +got):\n%s", diff)
	}

	bad := report.Inconsistent()
	if len(bad) != 2 || bad[0].Variable != "h_temp" {
		t.Errorf("Expected 2 inconsistent references on h_temp, got %+v", bad)
	}
	if report.Clean() {
		t.Error("Expected illegal-aux-coords report to be unclean")
	}
	if report.Summary.CoordinateVariables != 2 {
		t.Errorf("Expected xc and yc as coordinate variables, got %d", report.Summary.CoordinateVariables)
	}
}

func TestValidFixturesAreClean(t *testing.T) {
	for _, name := range []string{"multi-timeseries-profile", "climatology"} {
		report := Inspect(load(t, name))
		if !report.Clean() {
			t.Errorf("%s: expected clean report, got unresolved=%v inconsistent=%v",
				name, report.Unresolved(), report.Inconsistent())
		}
		if report.Summary.References == 0 {
			t.Errorf("%s: expected references to be found", name)
		}
	}
}

func TestClimatologyBoundsExtendTime(t *testing.T) {
	report := Inspect(load(t, "climatology"))
	tv, _ := report.Variable("time")
	if len(tv.References) != 1 {
		t.Fatalf("Expected one reference on time, got %d", len(tv.References))
	}
	ref := tv.References[0]
	if ref.Attribute != "climatology" || ref.Rule != RuleExtends || !ref.Consistent {
		t.Errorf("Unexpected climatology reference %+v", ref)
	}
	if !tv.IsCoordinate {
		t.Error("Expected time to be a coordinate variable")
	}
}

func TestUnresolvedAndKeyed(t *testing.T) {
	ds := &models.Dataset{
		Name:       "refs",
		Dimensions: []models.Dimension{{Name: "x", Size: 2}},
		Variables: []*models.Variable{
			{Name: "area", Type: models.Float, Dimensions: []string{"x"}},
			{Name: "v", Type: models.Float, Dimensions: []string{"x"}, Attributes: []models.Attribute{
				{Name: "cell_measures", Type: models.Char, Values: []models.Literal{models.Str("area: area volume: vol")}},
				{Name: "coordinates", Type: models.Char, Values: []models.Literal{models.Str("ghost")}},
			}},
		},
	}

	report := Inspect(ds)
	unresolved := report.Unresolved()
	if len(unresolved) != 2 {
		t.Fatalf("Expected 2 unresolved references, got %+v", unresolved)
	}
	targets := map[string]string{}
	for _, f := range unresolved {
		targets[f.Target] = f.Key
	}
	if key, ok := targets["vol"]; !ok || key != "volume" {
		t.Errorf("Expected unresolved vol with key volume, got %v", targets)
	}
	if _, ok := targets["ghost"]; !ok {
		t.Errorf("Expected unresolved ghost, got %v", targets)
	}
	if report.Summary.References != 3 || report.Summary.UnresolvedReferences != 2 {
		t.Errorf("Unexpected summary %+v", report.Summary)
	}
}
