package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/regress/internal/fileutil"
	"github.com/harrison/regress/internal/models"
)

// DefaultRunArgs runs a program verbosely on a single input.
var DefaultRunArgs = []string{"-v", "-1"}

// VersionFlag asks a program for its version string.
const VersionFlag = "--version"

// versionUnavailable is written to logs when no version could be captured.
const versionUnavailable = "unavailable"

// JobState is the lifecycle position of a Job.
type JobState int

const (
	// JobCreated is the state of a job waiting in the queue.
	JobCreated JobState = iota
	// JobRunning is the state while the program runs.
	JobRunning
	// JobCompleted is terminal; the result is set.
	JobCompleted
)

// String returns the string representation of JobState.
func (s JobState) String() string {
	switch s {
	case JobCreated:
		return "created"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// JobResult is what one program run produced. Stdout and Stderr are captured
// in full.
type JobResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is a *LaunchError when the program never started.
	Err      error
	Duration time.Duration
}

// Passed reports whether the program started and exited with code 0.
func (r *JobResult) Passed() bool {
	return r.Err == nil && r.ExitCode == 0
}

// JobOptions tunes how a Job invokes its program.
type JobOptions struct {
	Category string
	// RunArgs precede the input path on the command line (default -v -1).
	RunArgs []string
}

// Job runs one program on one input inside one output directory.
type Job struct {
	Category   string
	InputPath  string
	Executable string
	OutputDir  string
	RunArgs    []string

	version    string
	hasVersion bool

	mu     sync.Mutex
	state  JobState
	result *JobResult
}

// NewJob creates a job and captures the program version once. A failed
// version query leaves the version unavailable and never fails construction.
func NewJob(ctx context.Context, inputPath, executable, outputDir string, opts JobOptions) *Job {
	args := opts.RunArgs
	if args == nil {
		args = DefaultRunArgs
	}
	j := &Job{
		Category:   opts.Category,
		InputPath:  inputPath,
		Executable: executable,
		OutputDir:  outputDir,
		RunArgs:    append([]string(nil), args...),
	}
	j.version, j.hasVersion = captureVersion(ctx, executable)
	return j
}

// captureVersion runs "<executable> --version" and returns its trimmed stdout.
func captureVersion(ctx context.Context, executable string) (string, bool) {
	cmd := exec.CommandContext(ctx, executable, VersionFlag)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", false
	}
	return strings.TrimSpace(stdout.String()), true
}

// ToolVersion returns the captured version and whether one is available.
func (j *Job) ToolVersion() (string, bool) {
	return j.version, j.hasVersion
}

// LogPath is OutputDir/logs/<basename(InputPath)>.log.
func (j *Job) LogPath() string {
	return filepath.Join(j.OutputDir, fileutil.LogDirName, filepath.Base(j.InputPath)+".log")
}

// State returns the current lifecycle state.
func (j *Job) State() JobState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Result returns the run result, or nil before the job completes.
func (j *Job) Result() *JobResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// Run executes "<executable> <RunArgs...> <input>" with OutputDir as the
// child's working directory and records the result. A zero exit increments
// tally.Passed, anything else (including a launch failure) tally.Failed.
// The process always runs to completion. Calling Run twice returns
// ErrJobAlreadyRun and executes nothing.
func (j *Job) Run(tally *Tally) error {
	j.mu.Lock()
	if j.state != JobCreated {
		j.mu.Unlock()
		return fmt.Errorf("%s: %w", j.InputPath, ErrJobAlreadyRun)
	}
	j.state = JobRunning
	j.mu.Unlock()

	args := append(append([]string(nil), j.RunArgs...), j.InputPath)
	cmd := exec.Command(j.Executable, args...)
	cmd.Dir = j.OutputDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	result := &JobResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
		result.Err = &LaunchError{Executable: j.Executable, Err: err}
	}

	if result.Passed() {
		tally.Passed.Inc()
	} else {
		tally.Failed.Inc()
	}

	j.mu.Lock()
	j.result = result
	j.state = JobCompleted
	j.mu.Unlock()
	return nil
}

// WriteLog writes the job's log artifact. It fails if the job has not run or
// the log file cannot be written; the job stays completed either way.
func (j *Job) WriteLog() error {
	result := j.Result()
	if result == nil {
		return fmt.Errorf("write log for %s: job has not run", j.InputPath)
	}

	file, err := os.OpenFile(j.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("cannot write log file %q: %w", j.LogPath(), err)
	}
	defer file.Close()

	if _, err := file.WriteString(j.formatLog(result)); err != nil {
		return fmt.Errorf("failed to write log %q: %w", j.LogPath(), err)
	}
	return nil
}

func (j *Job) formatLog(result *JobResult) string {
	version := versionUnavailable
	if j.hasVersion {
		version = j.version
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Input file: \"%s\"\n", j.InputPath))
	sb.WriteString(fmt.Sprintf("Program: \"%s\"\n", j.Executable))
	sb.WriteString(fmt.Sprintf("Version: %s\n", version))
	sb.WriteString(fmt.Sprintf("return code:%d\n\n", result.ExitCode))
	sb.WriteString(fmt.Sprintf("stdout results:\n %s\n\n", result.Stdout))
	sb.WriteString(fmt.Sprintf("stderr results:\n %s\n\n", result.Stderr))
	if result.Err != nil {
		sb.WriteString(fmt.Sprintf("launch error:\n %v\n\n", result.Err))
	}
	return sb.String()
}

// Outcome converts the job into its recorded form.
func (j *Job) Outcome() models.JobOutcome {
	o := models.JobOutcome{
		Category:   j.Category,
		InputPath:  j.InputPath,
		Executable: j.Executable,
		Version:    j.version,
		ExitCode:   -1,
		LogPath:    j.LogPath(),
	}
	result := j.Result()
	if result == nil {
		o.Status = models.StatusError
		o.Error = "job has not run"
		return o
	}

	o.ExitCode = result.ExitCode
	o.Duration = result.Duration
	switch {
	case result.Err != nil:
		o.Status = models.StatusError
		o.Error = result.Err.Error()
	case result.ExitCode == 0:
		o.Status = models.StatusPassed
	default:
		o.Status = models.StatusFailed
	}
	return o
}
