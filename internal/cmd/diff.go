package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/report"
)

// NewDiffCommand creates the diff command
func NewDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <reference> <candidate>",
		Short: "Compare two output trees without running tests",
		Long: `Compare the output tree <candidate> against <reference> and print how many
files differ, exist only in the reference (orphaned) or only in the candidate
(newly generated), broken out by .log, .tra and .fits.

The verdict is PASS when nothing differs, LOOSE PASS when only log files
differ, and otherwise decided by a structural comparison of the .fits files
that ignores volatile header keywords such as DATE.

Examples:
  regress diff /scratch/run-1/results /scratch/run-2/results
  regress diff ref/results new/results --out new --html`,
		Args: cobra.ExactArgs(2),
		RunE: runDiff,
	}

	cmd.Flags().String("out", "", "Directory to write the comparison report to")
	cmd.Flags().Bool("html", false, "Also write an HTML report (requires --out)")
	cmd.Flags().Bool("no-history", false, "Do not record the comparison in the history database")

	return cmd
}

func runDiff(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := consoleOnly(cmd.OutOrStdout(), cfg.LogLevel)
	comparator := compare.NewComparator(cfg.ComparatorOptions(), log)

	result, err := comparator.Compare(args[0], args[1])
	if result != nil {
		log.LogComparison(result)
	}
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		recordHistory(context.Background(), cfg, nil, result, log)
	}

	if dir, _ := cmd.Flags().GetString("out"); dir != "" {
		if html, _ := cmd.Flags().GetBool("html"); html {
			cfg.Report.HTML = true
		}
		writeReports(cfg, dir, "Comparison "+result.Verdict.String(), report.Comparison(result), log)
	}
	return nil
}
