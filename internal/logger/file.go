package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/models"
)

// DefaultLogDir is where run logs go unless configured otherwise.
var DefaultLogDir = filepath.Join(".regress", "logs")

// FileLogger writes a timestamped log file per run (run-YYYYMMDD-HHMMSS.log)
// and keeps a latest.log symlink pointing at the newest one. It is
// thread-safe and implements the executor.Logger interface.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .regress/logs/ at level info.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(DefaultLogDir, "info")
}

// NewFileLoggerWithDir creates a FileLogger with a custom log directory.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger with a custom log
// directory and log level.
func NewFileLoggerWithDirAndLevel(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	ts := time.Now().Format("20060102-150405")
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", ts))

	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	logger := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}

	logger.writeRunLog("=== Regression Run Log ===\n")
	logger.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return logger, nil
}

// RunFile returns the path of this run's log file.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogCategory records the inputs selected for a category.
func (fl *FileLogger) LogCategory(category models.CategorySummary) {
	if !fl.shouldLog("info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Category %s: %d input file(s), program %s\n",
		timestamp(), category.Name, category.Inputs, category.Executable))
}

// LogJobResult records one completed job with its log path. Failed jobs are
// always recorded; passing jobs only at debug level.
func (fl *FileLogger) LogJobResult(outcome models.JobOutcome, completed, total int) {
	level := "debug"
	if !outcome.Passed() {
		level = "warn"
	}
	if !fl.shouldLog(level) {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [%d/%d] %s %s: %s (exit %d, %s)\n",
		timestamp(), completed, total, outcome.Category, outcome.InputPath,
		outcome.Status, outcome.ExitCode, formatDuration(outcome.Duration))
	if outcome.Version != "" {
		fmt.Fprintf(&sb, "    program: %s (%s)\n", outcome.Executable, outcome.Version)
	} else {
		fmt.Fprintf(&sb, "    program: %s (version unavailable)\n", outcome.Executable)
	}
	fmt.Fprintf(&sb, "    log: %s\n", outcome.LogPath)
	if outcome.Error != "" {
		fmt.Fprintf(&sb, "    error: %s\n", outcome.Error)
	}
	if outcome.LogError != "" {
		fmt.Fprintf(&sb, "    log error: %s\n", outcome.LogError)
	}
	fl.writeRunLog(sb.String())
}

// LogSummary records the run summary.
func (fl *FileLogger) LogSummary(summary models.RunSummary) {
	if !fl.shouldLog("info") {
		return
	}

	var sb strings.Builder
	sb.WriteString("\n=== Regression Summary ===\n")
	fmt.Fprintf(&sb, "Run ID: %s\n", summary.RunID)
	fmt.Fprintf(&sb, "Data root: %s\n", summary.DataRoot)
	fmt.Fprintf(&sb, "Output root: %s\n", summary.OutputRoot)
	for _, c := range summary.Categories {
		fmt.Fprintf(&sb, "  %s (%s): %d input(s), %d passed, %d failed\n",
			c.Name, c.Executable, c.Inputs, c.Passed, c.Failed)
	}
	fmt.Fprintf(&sb, "%d/%d tests completed\n", summary.Passed, summary.Total)
	fmt.Fprintf(&sb, "Failed: %d\n", summary.Failed)
	for _, o := range summary.FailedOutcomes() {
		fmt.Fprintf(&sb, "  - %s: %s (exit %d) log %s\n", o.InputPath, o.Status, o.ExitCode, o.LogPath)
	}
	fmt.Fprintf(&sb, "Workers: %d\n", summary.Workers)
	fmt.Fprintf(&sb, "Total time taken: %s\n", FormatElapsed(summary.Duration))
	fl.writeRunLog(sb.String())
}

// LogComparison records a tree comparison and every data file pair that
// differed.
func (fl *FileLogger) LogComparison(report *compare.Report) {
	if report == nil || !fl.shouldLog("info") {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n=== Comparison %s vs %s ===\n", report.Left, report.Right)
	for _, line := range comparisonLines(report) {
		sb.WriteString(line + "\n")
	}
	for _, pair := range report.Pairs {
		if pair.Identical {
			continue
		}
		fmt.Fprintf(&sb, "%q & %q differ\n", pair.Left, pair.Right)
		if pair.Diff != nil {
			for _, d := range pair.Diff.Differences {
				fmt.Fprintf(&sb, "    %s\n", d)
			}
		}
	}
	fmt.Fprintf(&sb, "Verdict: %s\n", report.Verdict)
	fl.writeRunLog(sb.String())
}

// Close flushes and closes the run log file.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		if err := fl.runLog.Sync(); err != nil {
			return fmt.Errorf("failed to sync run log: %w", err)
		}
		if err := fl.runLog.Close(); err != nil {
			return fmt.Errorf("failed to close run log: %w", err)
		}
		fl.runLog = nil
	}
	return nil
}

// writeRunLog is a thread-safe helper to write to the run log file.
func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog != nil {
		fl.runLog.WriteString(message)
		// Flush after each write for real-time logging
		fl.runLog.Sync()
	}
}
