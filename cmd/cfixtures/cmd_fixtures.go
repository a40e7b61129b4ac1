package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cfcheck-fixtures/internal/ci"
	"github.com/cfcheck-fixtures/internal/fixtures"
)

var fixturesCmd = &cobra.Command{
	Use:   "fixtures",
	Short: "List, show and export the shipped CDL fixtures",
}

var fixturesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the shipped fixtures",
	Args:  cobra.NoArgs,
	RunE:  listFixtures,
}

var fixturesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a shipped fixture's CDL text",
	Args:  cobra.ExactArgs(1),
	RunE:  showFixture,
}

var fixturesExportCmd = &cobra.Command{
	Use:   "export [dir]",
	Short: "Write the shipped fixtures and CI descriptor into a directory",
	Long: `Writes every shipped fixture as <name>.cdl and the CI descriptor as
.travis.yml, giving the import and serve commands a starting directory.

Example:
  cfixtures fixtures export ./fixtures`,
	Args: cobra.ExactArgs(1),
	RunE: exportFixtures,
}

func init() {
	fixturesCmd.AddCommand(fixturesListCmd)
	fixturesCmd.AddCommand(fixturesShowCmd)
	fixturesCmd.AddCommand(fixturesExportCmd)
	rootCmd.AddCommand(fixturesCmd)
}

func listFixtures(cmd *cobra.Command, args []string) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVALID\tDESCRIPTION")
	for _, f := range fixtures.List() {
		valid := "yes"
		if f.Invalid {
			valid = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Name, valid, f.Description)
	}
	return tw.Flush()
}

func showFixture(cmd *cobra.Command, args []string) error {
	f, err := fixtures.Get(args[0])
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(f.Source)
	return err
}

func exportFixtures(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	for _, f := range fixtures.List() {
		path := filepath.Join(dir, f.Name+".cdl")
		if err := os.WriteFile(path, f.Source, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Debug("Exported fixture", "name", f.Name, "path", path)
	}

	descPath := filepath.Join(dir, ".travis.yml")
	if err := os.WriteFile(descPath, ci.DefaultSource(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", descPath, err)
	}

	log.Info("Exported fixtures", "dir", dir, "count", len(fixtures.List()))
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d fixtures to %s\n", len(fixtures.List()), dir)
	return nil
}
