package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/config"
	"github.com/harrison/regress/internal/executor"
	"github.com/harrison/regress/internal/history"
	"github.com/harrison/regress/internal/logger"
	"github.com/harrison/regress/internal/models"
	"github.com/harrison/regress/internal/report"
	"github.com/harrison/regress/internal/selection"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the regression suite",
		Long: `Run every pipeline program against the raw data files selected from the
regression data tree.

Inputs are discovered by header keyword (INSTRUME for ACS, STIS and WFC3, or
INSTRUME=WFC3 and PCTECORR=PERFORM with --cte). Each test runs
"<program> -v -1 <input>" with the output path as working directory and
writes <out>/logs/<input>.log. Afterwards every generated product is moved
from the data tree into <out>/results.

Per-test failures never change the exit code; a missing path, a missing
program or an existing output path abort the run before any test starts.

Examples:
  regress run -r /data/regress -e /opt/hstcal/bin -o /scratch/run-2026-10-16
  regress run -r /data/regress -e /opt/hstcal/bin -o out -n 8 --cte
  regress run -r /data -e bin -o out2 --reference out1/results --html`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	cmd.Flags().StringP("data", "r", "./", "Root path to regression test data")
	cmd.Flags().StringP("out", "o", "", "Root path to dump all output (must not exist)")
	cmd.Flags().StringP("exec", "e", "", "Path containing the pipeline programs")
	cmd.Flags().IntP("max-threads", "n", -1, "Maximum number of concurrent tests (0 = all cores, -1 = use config)")
	cmd.Flags().String("dequeue-timeout", "", "Idle time before a worker exits (e.g. 10s)")
	cmd.Flags().Bool("cte", false, "Only run CTE corrections on files with PCTECORR = PERFORM")
	cmd.Flags().String("reference", "", "Compare <out>/results against this reference tree after the run")
	cmd.Flags().String("log-dir", "", "Directory for run log files")
	cmd.Flags().Bool("html", false, "Also write an HTML report")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")

	_ = cmd.MarkFlagRequired("out")
	_ = cmd.MarkFlagRequired("exec")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := mergeRunFlags(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dataRoot, _ := cmd.Flags().GetString("data")
	outRoot, _ := cmd.Flags().GetString("out")
	execPath, _ := cmd.Flags().GetString("exec")
	cte, _ := cmd.Flags().GetBool("cte")
	reference, _ := cmd.Flags().GetString("reference")

	opts, err := cfg.RunOptions(dataRoot, execPath, outRoot, cte)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Path containing test data: %q\n", dataRoot)
	fmt.Fprintf(out, "Path containing executables: %q\n", execPath)
	fmt.Fprintf(out, "Path to dump all output: %q\n\n", outRoot)

	consoleLog := logger.NewConsoleLogger(out, cfg.LogLevel)
	consoleLog.SetProgress(isTerminal(out))

	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()

	multiLog := &multiLogger{loggers: []runLogger{consoleLog, fileLog}}

	if cte {
		multiLog.LogInfo("Processing CTE corrections only.")
	}

	discoverer := selection.NewDiscoverer(selection.NewFilter(nil, multiLog))
	orch := executor.NewOrchestrator(discoverer, multiLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := orch.Run(ctx, opts)
	if errors.Is(err, executor.ErrNoInputs) {
		fmt.Fprintln(out, "No input data files found! Terminating...")
		return nil
	}
	if err != nil && summary == nil {
		return err
	}
	runErr := err

	var comparison *compare.Report
	if reference != "" && runErr == nil {
		comparator := compare.NewComparator(cfg.ComparatorOptions(), multiLog)
		comparison, err = comparator.Compare(reference, filepath.Join(outRoot, executor.ResultsDirName))
		if comparison != nil {
			multiLog.LogComparison(comparison)
		}
		if err != nil {
			runErr = fmt.Errorf("comparison failed: %w", err)
		}
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if cfg.History.Enabled && !noHistory {
		recordHistory(ctx, cfg, summary, comparison, multiLog)
	}

	writeReports(cfg, outRoot, "Regression run "+summary.RunID, report.Run(summary, comparison), multiLog)

	fmt.Fprintf(out, "\nLogs written to: %s\n", fileLog.RunFile())
	return runErr
}

// mergeRunFlags applies the flags that override configuration values.
func mergeRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	var maxThreads *int
	if n, _ := cmd.Flags().GetInt("max-threads"); n >= 0 {
		maxThreads = &n
	}

	var timeout *time.Duration
	if s, _ := cmd.Flags().GetString("dequeue-timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid dequeue-timeout format %q: %w", s, err)
		}
		timeout = &d
	}

	var logDir *string
	if dir, _ := cmd.Flags().GetString("log-dir"); dir != "" {
		logDir = &dir
	}

	if html, _ := cmd.Flags().GetBool("html"); html {
		cfg.Report.HTML = true
	}

	cfg.MergeWithFlags(maxThreads, timeout, nil, logDir)
	return nil
}

// recordHistory stores a run and its comparison. Failures are warnings.
func recordHistory(ctx context.Context, cfg *config.Config, summary *models.RunSummary, comparison *compare.Report, log runLogger) {
	store, err := history.NewStore(cfg.History.DBPath)
	if err != nil {
		log.LogWarn(fmt.Sprintf("history not recorded: %v", err))
		return
	}
	defer store.Close()

	// The run context may already be cancelled; the record still matters.
	ctx = context.WithoutCancel(ctx)

	runID := ""
	if summary != nil {
		if err := store.RecordRun(ctx, summary); err != nil {
			log.LogWarn(fmt.Sprintf("history not recorded: %v", err))
			return
		}
		runID = summary.RunID
	}
	if comparison != nil {
		if _, err := store.RecordComparison(ctx, runID, comparison); err != nil {
			log.LogWarn(fmt.Sprintf("comparison not recorded: %v", err))
		}
	}
}

// writeReports writes the enabled report formats into dir.
func writeReports(cfg *config.Config, dir, title string, markdown []byte, log runLogger) {
	w := &report.Writer{Dir: dir, Markdown: cfg.Report.Markdown, HTML: cfg.Report.HTML}
	written, err := w.Write(title, markdown)
	if err != nil {
		log.LogWarn(fmt.Sprintf("report not written: %v", err))
	}
	for _, path := range written {
		log.LogInfo(fmt.Sprintf("Report written to %s", path))
	}
}

// runLogger is what a regression run reports to.
type runLogger interface {
	executor.Logger
	LogComparison(report *compare.Report)
}

// multiLogger implements runLogger by delegating to multiple loggers
type multiLogger struct {
	loggers []runLogger
}

// LogDebug forwards to all loggers
func (ml *multiLogger) LogDebug(message string) {
	for _, l := range ml.loggers {
		l.LogDebug(message)
	}
}

// LogInfo forwards to all loggers
func (ml *multiLogger) LogInfo(message string) {
	for _, l := range ml.loggers {
		l.LogInfo(message)
	}
}

// LogWarn forwards to all loggers
func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}

// LogError forwards to all loggers
func (ml *multiLogger) LogError(message string) {
	for _, l := range ml.loggers {
		l.LogError(message)
	}
}

// LogCategory forwards to all loggers
func (ml *multiLogger) LogCategory(category models.CategorySummary) {
	for _, l := range ml.loggers {
		l.LogCategory(category)
	}
}

// LogJobResult forwards to all loggers
func (ml *multiLogger) LogJobResult(outcome models.JobOutcome, completed, total int) {
	for _, l := range ml.loggers {
		l.LogJobResult(outcome, completed, total)
	}
}

// LogSummary forwards to all loggers
func (ml *multiLogger) LogSummary(summary models.RunSummary) {
	for _, l := range ml.loggers {
		l.LogSummary(summary)
	}
}

// LogComparison forwards to all loggers
func (ml *multiLogger) LogComparison(report *compare.Report) {
	for _, l := range ml.loggers {
		l.LogComparison(report)
	}
}

// consoleOnly builds a logger for the short-lived commands.
func consoleOnly(w io.Writer, level string) *multiLogger {
	return &multiLogger{loggers: []runLogger{logger.NewConsoleLogger(w, level)}}
}
