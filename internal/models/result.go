package models

import "time"

// Test outcome status constants
const (
	StatusPassed = "PASSED" // Program exited with code 0
	StatusFailed = "FAILED" // Program exited non-zero
	StatusError  = "ERROR"  // Program could not be launched
)

// JobOutcome is the recorded result of running one test job
type JobOutcome struct {
	Category   string        // Category the input was selected for (e.g. "acs")
	InputPath  string        // Dataset under test
	Executable string        // Program that processed it
	Version    string        // Program version, empty if unavailable
	Status     string        // PASSED, FAILED or ERROR
	ExitCode   int           // Exit code, -1 when the program never started
	Error      string        // Launch error text, if any
	Duration   time.Duration // Wall time of the program
	LogPath    string        // Per-test log file
	LogError   string        // Log write failure, if any
}

// Passed reports whether the job counts toward the pass total
func (o JobOutcome) Passed() bool {
	return o.Status == StatusPassed
}

// CategorySummary aggregates the jobs of one category
type CategorySummary struct {
	Name       string
	Executable string
	Inputs     int
	Passed     int
	Failed     int
}

// RunSummary represents the aggregate result of a regression run
type RunSummary struct {
	RunID      string            // Unique run identifier
	DataRoot   string            // Root searched for inputs
	OutputRoot string            // Root receiving logs and results
	StartedAt  time.Time         // When the run started
	Duration   time.Duration     // Total execution time
	Workers    int               // Number of workers used
	Total      int               // Jobs enqueued
	Passed     int               // Jobs with exit code 0
	Failed     int               // Jobs that failed or never launched
	Categories []CategorySummary // Per-category breakdown in queue order
	Outcomes   []JobOutcome      // Every job, in queue order
}

// FailedOutcomes returns the outcomes that did not pass
func (s *RunSummary) FailedOutcomes() []JobOutcome {
	var failed []JobOutcome
	for _, o := range s.Outcomes {
		if !o.Passed() {
			failed = append(failed, o)
		}
	}
	return failed
}
