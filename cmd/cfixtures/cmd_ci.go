package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cfcheck-fixtures/internal/ci"
	"github.com/cfcheck-fixtures/pkg/ci/models"
)

var (
	ciFile    string
	ciTarget  string
	ciVersion string
	ciJSON    bool
)

var ciCmd = &cobra.Command{
	Use:   "ci",
	Short: "Inspect the CI job descriptor (nothing is executed)",
	Long: `Reads a Travis-style descriptor (the shipped one unless --file or
CI_DESCRIPTOR names another) and shows its job matrix and the commands each
job would run.`,
}

var ciJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List the expanded job matrix",
	Args:  cobra.NoArgs,
	RunE:  listJobs,
}

var ciTargetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "List the TEST_TARGET values",
	Args:  cobra.NoArgs,
	RunE:  listTargets,
}

var ciScriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Print the resolved commands of one job",
	Long: `Prints the before_install, install and script commands that apply to
the job selected by --target and --version (the first matching job when
--version is omitted).

Example:
  cfixtures ci script --target cc-plugin-ncei --version 3.6`,
	Args: cobra.NoArgs,
	RunE: printScript,
}

func init() {
	ciCmd.PersistentFlags().StringVar(&ciFile, "file", "", "descriptor path (default: CI_DESCRIPTOR or the shipped descriptor)")
	ciCmd.PersistentFlags().BoolVar(&ciJSON, "json", false, "print JSON")
	ciScriptCmd.Flags().StringVar(&ciTarget, "target", "default", "TEST_TARGET of the job")
	ciScriptCmd.Flags().StringVar(&ciVersion, "version", "", "language version of the job")

	ciCmd.AddCommand(ciJobsCmd)
	ciCmd.AddCommand(ciTargetsCmd)
	ciCmd.AddCommand(ciScriptCmd)
	rootCmd.AddCommand(ciCmd)
}

func loadDescriptor() (*models.Descriptor, error) {
	path := ciFile
	if path == "" && cfg != nil {
		path = cfg.Fixtures.CIDescriptor
	}
	if path == "" {
		return ci.Default(), nil
	}
	log.Debug("Loading CI descriptor", "path", path)
	return ci.LoadFile(path)
}

func listJobs(cmd *cobra.Command, args []string) error {
	desc, err := loadDescriptor()
	if err != nil {
		return err
	}
	jobs := ci.Expand(desc)
	if ciJSON {
		return writeJSON(cmd.OutOrStdout(), jobs)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tVERSION\tENV\tALLOW FAILURE")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%v\n", job.Number, job.Version, job.EnvString(), job.AllowFailure)
	}
	return tw.Flush()
}

func listTargets(cmd *cobra.Command, args []string) error {
	desc, err := loadDescriptor()
	if err != nil {
		return err
	}
	targets := ci.Targets(desc)
	if ciJSON {
		return writeJSON(cmd.OutOrStdout(), targets)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(targets, "\n"))
	return err
}

func printScript(cmd *cobra.Command, args []string) error {
	desc, err := loadDescriptor()
	if err != nil {
		return err
	}

	var job *models.Job
	for _, j := range ci.JobsFor(desc, ciTarget) {
		if ciVersion == "" || j.Version == ciVersion {
			j := j
			job = &j
			break
		}
	}
	if job == nil {
		return fmt.Errorf("no job with TEST_TARGET=%s and version %q", ciTarget, ciVersion)
	}

	plan := ci.Resolve(desc, *job)
	if ciJSON {
		return writeJSON(cmd.OutOrStdout(), plan)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "# job %d: %s\n", job.Number, job.EnvString())
	for _, phase := range []struct {
		name     string
		commands []string
	}{
		{"before_install", plan.BeforeInstall},
		{"install", plan.Install},
		{"script", plan.Script},
	} {
		fmt.Fprintf(out, "# %s\n", phase.name)
		for _, c := range phase.commands {
			fmt.Fprintln(out, c)
		}
	}
	return nil
}
