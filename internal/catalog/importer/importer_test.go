package importer

import (
	"strings"
	"testing"

	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

func TestBuildInsertQuery(t *testing.T) {
	imp := &Importer{batchSize: 10}
	b := imp.newBatchInserter("dimensions")
	b.valueCount = 2

	want := "INSERT INTO catalog.dimensions (version_id, dataset_name, dimension_name, size, is_unlimited, position) VALUES " +
		"($1, $2, $3, $4, $5, $6), ($7, $8, $9, $10, $11, $12) ON CONFLICT DO NOTHING"
	if got := b.buildInsertQuery(); got != want {
		t.Errorf("Unexpected query:\n got %s\nwant %s", got, want)
	}
}

func TestEveryTableHasColumns(t *testing.T) {
	for _, table := range []string{"datasets", "dimensions", "variables", "attributes", "references_", "ci_jobs"} {
		cols := getColumnsForTable(table)
		if len(cols) == 0 || cols[0] != "version_id" {
			t.Errorf("%s: expected version_id as first column, got %v", table, cols)
		}
	}
	if getColumnsForTable("nope") != nil {
		t.Error("Expected no columns for unknown table")
	}
}

func TestAddRejectsWrongArity(t *testing.T) {
	imp := &Importer{batchSize: 10}
	b := imp.newBatchInserter("datasets")
	err := b.Add(1, "name")
	if err == nil || !strings.Contains(err.Error(), "got 2 values for 4 columns") {
		t.Errorf("Expected arity error, got %v", err)
	}
	if b.valueCount != 0 {
		t.Errorf("Expected no buffered rows, got %d", b.valueCount)
	}
}

func TestAttributeValue(t *testing.T) {
	tests := []struct {
		attr models.Attribute
		want string
	}{
		{models.Attribute{Name: "units", Type: models.Char, Values: []models.Literal{models.Str("m")}}, "m"},
		{models.Attribute{Name: "valid_range", Type: models.Float, Values: []models.Literal{models.Number("0"), models.Number("1.5")}}, "0, 1.5"},
	}
	for _, tt := range tests {
		if got := attributeValue(tt.attr); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.attr.Name, got, tt.want)
		}
	}
}
