package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cfcheck-fixtures/internal/cdl/inspect"
	"github.com/cfcheck-fixtures/internal/ci"
	"github.com/cfcheck-fixtures/internal/common/db"
	catalogmodels "github.com/cfcheck-fixtures/pkg/catalog/models"
	cdlmodels "github.com/cfcheck-fixtures/pkg/cdl/models"
	cimodels "github.com/cfcheck-fixtures/pkg/ci/models"
)

const defaultBatchSize = 1000

// Source is a parsed dataset and the file it came from.
type Source struct {
	FileName string
	Dataset  *cdlmodels.Dataset
}

type Importer struct {
	db        *db.DB
	versionID int
	batchSize int
}

func NewImporter(database *db.DB, versionID int) *Importer {
	return &Importer{
		db:        database,
		versionID: versionID,
		batchSize: defaultBatchSize,
	}
}

// Import writes the datasets, their inspection results and the expanded CI
// jobs of desc under the importer's version, in one transaction. desc may be
// nil.
func (i *Importer) Import(ctx context.Context, sources []Source, desc *cimodels.Descriptor) (catalogmodels.ImportStats, error) {
	var stats catalogmodels.ImportStats

	datasetBatch := i.newBatchInserter("datasets")
	dimensionBatch := i.newBatchInserter("dimensions")
	variableBatch := i.newBatchInserter("variables")
	attributeBatch := i.newBatchInserter("attributes")
	referenceBatch := i.newBatchInserter("references_")
	jobBatch := i.newBatchInserter("ci_jobs")

	tx, err := i.db.BeginTx(ctx)
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	batches := []*batchInserter{
		datasetBatch, dimensionBatch, variableBatch,
		attributeBatch, referenceBatch, jobBatch,
	}

	for _, batch := range batches {
		batch.tx = tx
		batch.ctx = ctx
	}

	for _, src := range sources {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		ds := src.Dataset
		report := inspect.Inspect(ds)

		if err := datasetBatch.Add(i.versionID, ds.Name, src.FileName, report.Clean()); err != nil {
			return stats, err
		}
		stats.Datasets++

		for pos, d := range ds.Dimensions {
			if err := dimensionBatch.Add(i.versionID, ds.Name, d.Name, d.Size, d.Unlimited, pos); err != nil {
				return stats, err
			}
			stats.Dimensions++
		}

		for pos, v := range ds.Variables {
			if err := variableBatch.Add(
				i.versionID,
				ds.Name,
				v.Name,
				string(v.Type),
				strings.Join(v.Dimensions, ","),
				ds.IsCoordinateVariable(v),
				len(v.Data),
				pos,
			); err != nil {
				return stats, err
			}
			stats.Variables++

			for apos, a := range v.Attributes {
				if err := attributeBatch.Add(i.versionID, ds.Name, v.Name, a.Name, string(a.Type), attributeValue(a), apos); err != nil {
					return stats, err
				}
				stats.Attributes++
			}
		}

		// global attributes are stored under the empty variable name
		for apos, a := range ds.Attributes {
			if err := attributeBatch.Add(i.versionID, ds.Name, "", a.Name, string(a.Type), attributeValue(a), apos); err != nil {
				return stats, err
			}
			stats.Attributes++
		}

		for _, vr := range report.Variables {
			for _, ref := range vr.References {
				if err := referenceBatch.Add(
					i.versionID,
					ds.Name,
					vr.Name,
					ref.Attribute,
					ref.Target,
					sql.NullString{String: ref.Key, Valid: ref.Key != ""},
					ref.Exists,
					string(ref.Rule),
					ref.Consistent,
				); err != nil {
					return stats, err
				}
				stats.References++
			}
		}
	}

	if desc != nil {
		for _, job := range ci.Expand(desc) {
			plan := ci.Resolve(desc, job)
			target := job.Target()
			if err := jobBatch.Add(
				i.versionID,
				job.Number,
				job.Version,
				sql.NullString{String: target, Valid: target != ""},
				job.EnvString(),
				job.AllowFailure,
				strings.Join(append(plan.BeforeInstall, plan.Install...), "\n"),
				strings.Join(plan.Script, "\n"),
			); err != nil {
				return stats, err
			}
			stats.Jobs++
		}
	}

	for _, batch := range batches {
		if err := batch.Flush(); err != nil {
			return stats, fmt.Errorf("flushing %s batch: %w", batch.tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing transaction: %w", err)
	}

	i.db.Logger().Info("Import completed successfully",
		"version_id", i.versionID,
		"datasets", stats.Datasets,
		"rows", stats.Total())

	return stats, nil
}

func attributeValue(a cdlmodels.Attribute) string {
	if a.Type == cdlmodels.Char || a.Type == cdlmodels.String {
		return a.String()
	}
	parts := make([]string, len(a.Values))
	for i, v := range a.Values {
		parts[i] = v.Text
	}
	return strings.Join(parts, ", ")
}

type batchInserter struct {
	tableName  string
	columns    []string
	values     []interface{}
	valueCount int
	batchSize  int
	tx         *sql.Tx
	ctx        context.Context
	fieldCount int
}

func (i *Importer) newBatchInserter(tableName string) *batchInserter {
	columns := getColumnsForTable(tableName)
	return &batchInserter{
		tableName:  tableName,
		columns:    columns,
		values:     make([]interface{}, 0, i.batchSize*len(columns)),
		batchSize:  i.batchSize,
		fieldCount: len(columns),
	}
}

func (b *batchInserter) Add(values ...interface{}) error {
	if len(values) != b.fieldCount {
		return fmt.Errorf("%s: got %d values for %d columns", b.tableName, len(values), b.fieldCount)
	}
	b.values = append(b.values, values...)
	b.valueCount++

	if b.valueCount >= b.batchSize {
		return b.Flush()
	}

	return nil
}

func (b *batchInserter) Flush() error {
	if b.valueCount == 0 {
		return nil
	}

	query := b.buildInsertQuery()
	_, err := b.tx.ExecContext(b.ctx, query, b.values...)
	if err != nil {
		return fmt.Errorf("executing batch insert: %w", err)
	}

	b.values = b.values[:0]
	b.valueCount = 0

	return nil
}

func (b *batchInserter) buildInsertQuery() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("INSERT INTO catalog.%s (%s) VALUES ",
		b.tableName,
		strings.Join(b.columns, ", ")))

	for i := 0; i < b.valueCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := 0; j < b.fieldCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", i*b.fieldCount+j+1))
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT DO NOTHING")

	return sb.String()
}

func getColumnsForTable(tableName string) []string {
	switch tableName {
	case "datasets":
		return []string{"version_id", "dataset_name", "file_name", "is_clean"}
	case "dimensions":
		return []string{"version_id", "dataset_name", "dimension_name", "size", "is_unlimited", "position"}
	case "variables":
		return []string{"version_id", "dataset_name", "variable_name", "data_type", "dimensions", "is_coordinate", "value_count", "position"}
	case "attributes":
		return []string{"version_id", "dataset_name", "variable_name", "attribute_name", "data_type", "value", "position"}
	case "references_":
		return []string{"version_id", "dataset_name", "variable_name", "attribute_name", "target", "measure_key", "target_exists", "dimension_rule", "consistent"}
	case "ci_jobs":
		return []string{"version_id", "job_number", "language_version", "test_target", "env", "allow_failure", "install_commands", "script_commands"}
	default:
		return nil
	}
}
