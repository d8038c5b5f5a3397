// Package logger reports regression runs and tree comparisons.
//
// ConsoleLogger writes timestamped, level-filtered lines to a terminal or any
// writer; FileLogger keeps a per-run log file. Both are safe for concurrent
// use by the worker pool and satisfy the executor's Logger interface.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// progressWidth is the bar width used for per-job progress lines.
const progressWidth = 20

// ConsoleLogger logs run progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer       io.Writer
	logLevel     string
	mutex        sync.Mutex
	colorOutput  bool
	showProgress bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// SetProgress enables a progress bar line after every completed job.
func (cl *ConsoleLogger) SetProgress(enabled bool) {
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.showProgress = enabled
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor is false only for a TTY without NO_COLOR set.
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

// IsValidLogLevel reports whether level names a known level.
func IsValidLogLevel(level string) bool {
	normalized := strings.ToLower(strings.TrimSpace(level))
	return normalized != "" && normalizeLogLevel(normalized) == normalized
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		cl.writer.Write([]byte(cl.formatWithColor(ts, level, message)))
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string
	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}
	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogCategory logs how many inputs a category selected.
// Format: "[HH:MM:SS] <n> <name> input file(s) found (<executable>)"
func (cl *ConsoleLogger) LogCategory(category models.CategorySummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := category.Name
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] %d %s input file(s) found (%s)\n",
		timestamp(), category.Inputs, name, category.Executable)
}

// LogJobResult logs one completed job at INFO level, followed by a progress
// bar when enabled.
// Format: "[HH:MM:SS] [PASSED] <category> <input> (exit 0, 3s) - ~<n> tests remaining"
func (cl *ConsoleLogger) LogJobResult(outcome models.JobOutcome, completed, total int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	status := outcome.Status
	if cl.colorOutput {
		status = formatColorizedStatus(status)
	}

	line := fmt.Sprintf("[%s] [%s] %s %s (exit %d, %s) - ~%d tests remaining\n",
		ts, status, outcome.Category, filepath.Base(outcome.InputPath),
		outcome.ExitCode, formatDuration(outcome.Duration), total-completed)
	if outcome.Error != "" {
		line += fmt.Sprintf("[%s]   %s\n", ts, outcome.Error)
	}
	if outcome.LogError != "" {
		line += fmt.Sprintf("[%s]   log not written: %s\n", ts, outcome.LogError)
	}

	if cl.showProgress {
		pb := NewProgressBar(total, progressWidth, cl.colorOutput)
		pb.SetPrefix("Progress: ")
		pb.Update(completed)
		line += fmt.Sprintf("[%s] %s\n", ts, pb.Render())
	}

	cl.writer.Write([]byte(line))
}

// LogSummary logs the run summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.RunSummary) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	scheme := newColorScheme(cl.colorOutput)

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.header.Sprint("=== Regression Summary ==="))
	fmt.Fprintf(&sb, "[%s] Run: %s\n", ts, summary.RunID)
	for _, c := range summary.Categories {
		if c.Inputs == 0 {
			continue
		}
		fmt.Fprintf(&sb, "[%s]   %s\n", ts, formatCategoryLine(c, scheme))
	}
	fmt.Fprintf(&sb, "[%s] %s\n", ts, formatPassRatio(summary.Passed, summary.Total, scheme))
	if summary.Failed > 0 {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, scheme.fail.Sprintf("Failed: %d", summary.Failed))
		for _, o := range summary.FailedOutcomes() {
			fmt.Fprintf(&sb, "[%s]   - %s %s: %s (exit %d)\n",
				ts, o.Category, filepath.Base(o.InputPath), o.Status, o.ExitCode)
		}
	}
	fmt.Fprintf(&sb, "[%s] Workers: %d\n", ts, summary.Workers)
	fmt.Fprintf(&sb, "[%s] Total time taken: %s\n", ts, FormatElapsed(summary.Duration))

	cl.writer.Write([]byte(sb.String()))
}

// LogComparison logs the outcome of a tree comparison at INFO level.
func (cl *ConsoleLogger) LogComparison(report *compare.Report) {
	if cl.writer == nil || report == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	scheme := newColorScheme(cl.colorOutput)
	var sb strings.Builder
	for _, line := range comparisonLines(report) {
		fmt.Fprintf(&sb, "[%s] %s\n", ts, line)
	}
	fmt.Fprintf(&sb, "[%s] %s\n", ts, formatColorizedVerdict(report, scheme))
	fmt.Fprintf(&sb, "[%s] Time taken to diff: %s\n", ts, FormatElapsed(report.Duration))
	cl.writer.Write([]byte(sb.String()))
}

// comparisonLines renders the per-suffix breakdown of a comparison.
func comparisonLines(report *compare.Report) []string {
	s := report.Summary
	suffixLines := func(pick func(compare.Counts) int) []string {
		var lines []string
		for _, suffix := range s.Suffixes {
			lines = append(lines, fmt.Sprintf("    %d of them %q files", pick(s.Suffix(suffix)), suffix))
		}
		return lines
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%d file(s) differ between paths:", s.Differing))
	lines = append(lines, suffixLines(func(c compare.Counts) int { return c.Differing })...)
	lines = append(lines, fmt.Sprintf("%d orphaned file(s)/dir(s) found:", s.LeftOnly))
	lines = append(lines, suffixLines(func(c compare.Counts) int { return c.LeftOnly })...)
	lines = append(lines, fmt.Sprintf("%d newly generated file(s)/dir(s) found:", s.RightOnly))
	lines = append(lines, suffixLines(func(c compare.Counts) int { return c.RightOnly })...)
	if report.DeepDiff {
		lines = append(lines, fmt.Sprintf("%d data file pair(s) differ", report.FailingPairs))
		for _, orphan := range report.Orphans {
			lines = append(lines, fmt.Sprintf("    data file on one side only: %s", orphan))
		}
	}
	return lines
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a short human-readable string.
// Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// FormatElapsed renders a run duration as "Xhrs:Ymins:Zsecs" with fractional
// seconds, e.g. "1hrs:2mins:3.5secs".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	return fmt.Sprintf("%dhrs:%dmins:%ssecs", hours, minutes,
		strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", d.Seconds()), "0"), "."))
}

// NoOpLogger is a Logger implementation that discards all log messages.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogTrace(message string)                                      {}
func (n *NoOpLogger) LogDebug(message string)                                      {}
func (n *NoOpLogger) LogInfo(message string)                                       {}
func (n *NoOpLogger) LogWarn(message string)                                       {}
func (n *NoOpLogger) LogError(message string)                                      {}
func (n *NoOpLogger) LogCategory(category models.CategorySummary)                  {}
func (n *NoOpLogger) LogJobResult(outcome models.JobOutcome, completed, total int) {}
func (n *NoOpLogger) LogSummary(summary models.RunSummary)                         {}
func (n *NoOpLogger) LogComparison(report *compare.Report)                         {}
