package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cfcheck-fixtures/internal/cdl/inspect"
	"github.com/cfcheck-fixtures/internal/cdl/parser"
	"github.com/cfcheck-fixtures/internal/cdl/writer"
	"github.com/cfcheck-fixtures/internal/fixtures"
	"github.com/cfcheck-fixtures/pkg/cdl/models"
)

var (
	parseFormat    string
	inspectFixture string
	inspectJSON    bool
)

// parseCmd reads a CDL file and prints it back
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a CDL file and print it as CDL or JSON",
	Long: `Parses a CDL file ("-" or no argument reads stdin), checks it, and
prints the dataset in the canonical ncdump layout or as JSON.

Example:
  cfixtures parse climatology.cdl
  cfixtures parse --format json climatology.cdl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

// inspectCmd resolves attribute references
var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Resolve the variable references in a dataset's attributes",
	Long: `Lists, for every variable, the variables named by its coordinates,
bounds, climatology, ancillary_variables, grid_mapping and cell_measures
attributes, and whether their dimensions fit.

Example:
  cfixtures inspect --fixture illegal-aux-coords
  cfixtures inspect --json my.cdl`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	parseCmd.Flags().StringVar(&parseFormat, "format", "cdl", "output format: cdl or json")
	inspectCmd.Flags().StringVar(&inspectFixture, "fixture", "", "inspect a shipped fixture instead of a file")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(inspectCmd)
}

func readDataset(cmd *cobra.Command, args []string) (*models.Dataset, error) {
	p := parser.New(log)
	if len(args) == 0 || args[0] == "-" {
		ds, err := p.ParseDataset(cmd.Context(), cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("parsing stdin: %w", err)
		}
		return ds, nil
	}
	return p.ParseFile(cmd.Context(), args[0])
}

func runParse(cmd *cobra.Command, args []string) error {
	ds, err := readDataset(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch strings.ToLower(parseFormat) {
	case "cdl":
		return writer.Write(out, ds)
	case "json":
		return writeJSON(out, ds)
	default:
		return fmt.Errorf("unknown format %q (want cdl or json)", parseFormat)
	}
}

func runInspect(cmd *cobra.Command, args []string) error {
	var (
		ds  *models.Dataset
		err error
	)
	switch {
	case inspectFixture != "" && len(args) > 0:
		return fmt.Errorf("give either a file or --fixture, not both")
	case inspectFixture != "":
		ds, err = fixtures.NewLoader(log).Load(cmd.Context(), inspectFixture)
	case len(args) == 0:
		return fmt.Errorf("a file or --fixture is required")
	default:
		ds, err = readDataset(cmd, args)
	}
	if err != nil {
		return err
	}

	report := inspect.Inspect(ds)
	if inspectJSON {
		return writeJSON(cmd.OutOrStdout(), report)
	}
	return printReport(cmd.OutOrStdout(), report)
}

func printReport(w io.Writer, report inspect.Report) error {
	fmt.Fprintf(w, "dataset %s: %d variables, %d coordinate variables, %d references\n",
		report.Dataset, report.Summary.Variables, report.Summary.CoordinateVariables, report.Summary.References)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tDIMENSIONS\tATTRIBUTE\tTARGET\tTARGET DIMENSIONS\tSTATUS")
	for _, v := range report.Variables {
		for _, ref := range v.References {
			status := "ok"
			switch {
			case !ref.Exists:
				status = "unresolved"
			case !ref.Consistent:
				status = "inconsistent (" + string(ref.Rule) + ")"
			}
			target := ref.Target
			if ref.Key != "" {
				target = ref.Key + ": " + ref.Target
			}
			fmt.Fprintf(tw, "%s\t(%s)\t%s\t%s\t(%s)\t%s\n",
				v.Name, strings.Join(v.Dimensions, ", "), ref.Attribute, target,
				strings.Join(ref.TargetDimensions, ", "), status)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if report.Clean() {
		fmt.Fprintln(w, "all references resolve with consistent dimensions")
		return nil
	}
	fmt.Fprintf(w, "%d unresolved, %d inconsistent\n",
		report.Summary.UnresolvedReferences, report.Summary.InconsistentDims)
	return nil
}
