package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/history"
	"github.com/harrison/regress/internal/logger"
	"github.com/harrison/regress/internal/models"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded regression runs",
		Long: `Without arguments, list the most recent runs. With a run ID, show every test
of that run and the comparisons recorded for it.

Examples:
  regress history
  regress history 2f0c8a9e-...
  regress history --input /data/regress/acs/j8bt06o6q_raw.fits
  regress history --comparisons
  regress history --cleanup 90`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Int("limit", 20, "Maximum number of entries to show")
	cmd.Flags().String("input", "", "Show the outcomes recorded for one input file")
	cmd.Flags().Bool("comparisons", false, "List recorded comparisons")
	cmd.Flags().Int("cleanup", 0, "Delete runs older than this many days")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	limit, _ := cmd.Flags().GetInt("limit")

	if days, _ := cmd.Flags().GetInt("cleanup"); days > 0 {
		deleted, err := store.CleanupOldRuns(ctx, days)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted %d runs older than %d days\n", deleted, days)
		return nil
	}

	if input, _ := cmd.Flags().GetString("input"); input != "" {
		if abs, err := filepath.Abs(input); err == nil {
			input = abs
		}
		jobs, err := store.GetInputHistory(ctx, input, limit)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Fprintf(out, "No history for %s\n", input)
			return nil
		}
		printInputHistory(out, jobs)
		return nil
	}

	if all, _ := cmd.Flags().GetBool("comparisons"); all {
		return printComparisons(ctx, out, store, "")
	}

	if len(args) == 1 {
		return printRun(ctx, out, store, args[0])
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	printRuns(out, runs)
	return nil
}

func printRuns(out io.Writer, runs []*history.RunRecord) {
	bold := color.New(color.Bold)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	bold.Fprintln(tw, "RUN ID\tSTARTED\tDURATION\tTESTS\tPASSED\tFAILED\tDATA")
	for _, r := range runs {
		failed := fmt.Sprint(r.Failed)
		if r.Failed > 0 {
			failed = color.RedString("%s", failed)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), logger.FormatElapsed(r.Duration),
			r.Total, color.GreenString("%d", r.Passed), failed, r.DataRoot)
	}
	tw.Flush()
}

func printRun(ctx context.Context, out io.Writer, store *history.Store, runID string) error {
	run, err := store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	jobs, err := store.GetJobResults(ctx, runID)
	if err != nil {
		return err
	}

	label := color.New(color.FgCyan)
	label.Fprint(out, "Run: ")
	fmt.Fprintln(out, run.RunID)
	label.Fprint(out, "Started: ")
	fmt.Fprintln(out, run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	label.Fprint(out, "Data: ")
	fmt.Fprintln(out, run.DataRoot)
	label.Fprint(out, "Output: ")
	fmt.Fprintln(out, run.OutputRoot)
	label.Fprint(out, "Result: ")
	fmt.Fprintf(out, "%d/%d passed in %s with %d workers\n\n",
		run.Passed, run.Total, logger.FormatElapsed(run.Duration), run.Workers)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	color.New(color.Bold).Fprintln(tw, "CATEGORY\tSTATUS\tEXIT\tDURATION\tINPUT")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			j.Category, statusColor(j.Status), j.ExitCode, logger.FormatElapsed(j.Duration), j.InputPath)
	}
	tw.Flush()

	return printComparisons(ctx, out, store, runID)
}

func printInputHistory(out io.Writer, jobs []*history.JobRecord) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	color.New(color.Bold).Fprintln(tw, "STARTED\tRUN ID\tSTATUS\tEXIT\tVERSION")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			j.StartedAt.Local().Format("2006-01-02 15:04:05"), j.RunID, statusColor(j.Status), j.ExitCode, j.Version)
	}
	tw.Flush()
}

func printComparisons(ctx context.Context, out io.Writer, store *history.Store, runID string) error {
	comparisons, err := store.ListComparisons(ctx, runID)
	if err != nil {
		return err
	}
	if len(comparisons) == 0 {
		if runID == "" {
			fmt.Fprintln(out, "No comparisons recorded")
		}
		return nil
	}

	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	color.New(color.Bold).Fprintln(tw, "COMPARED\tVERDICT\tDIFFERING\tORPHANED\tNEW\tREFERENCE\tCANDIDATE")
	for _, c := range comparisons {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			c.ComparedAt.Local().Format("2006-01-02 15:04:05"), verdictColor(c.Verdict),
			c.Differing, c.LeftOnly, c.RightOnly, c.Left, c.Right)
	}
	return tw.Flush()
}

func statusColor(status string) string {
	switch status {
	case models.StatusPassed:
		return color.GreenString("%s", status)
	case models.StatusFailed, models.StatusError:
		return color.RedString("%s", status)
	default:
		return status
	}
}

func verdictColor(verdict string) string {
	switch verdict {
	case compare.Pass.String():
		return color.GreenString("%s", verdict)
	case compare.LoosePass.String():
		return color.YellowString("%s", verdict)
	default:
		return color.RedString("%s", verdict)
	}
}
