package executor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/regress/internal/filelock"
	"github.com/harrison/regress/internal/fileutil"
	"github.com/harrison/regress/internal/models"
	"github.com/harrison/regress/internal/selection"
)

// ResultsDirName is the directory under the output root receiving the
// products moved out of the data root after a run.
const ResultsDirName = "results"

// Category binds a selection of input files to the program that processes them.
type Category struct {
	Name       string
	Executable string // File name, resolved against Options.ExecPath
	Selection  selection.Selection
}

// DefaultCategories is the full pipeline suite: ACS, then STIS, then WFC3.
func DefaultCategories() []Category {
	return []Category{
		{Name: "acs", Executable: "calacs.e", Selection: selection.Selection{Keyword: "INSTRUME", Value: "ACS"}},
		{Name: "stis", Executable: "calstis.e", Selection: selection.Selection{Keyword: "INSTRUME", Value: "STIS"}},
		{Name: "wfc3", Executable: "calwf3.e", Selection: selection.Selection{Keyword: "INSTRUME", Value: "WFC3"}},
	}
}

// CTECategories runs only the WFC3 CTE correction on inputs requesting it.
func CTECategories() []Category {
	return []Category{
		{
			Name:       "wfc3cte",
			Executable: "wf3cte.e",
			Selection: selection.Selection{
				Keyword: "INSTRUME", Value: "WFC3",
				Clauses: []selection.Clause{{Op: selection.OpAnd, Keyword: "PCTECORR", Value: "PERFORM"}},
			},
		},
	}
}

// Options describes one regression run.
type Options struct {
	DataRoot       string
	ExecPath       string
	OutputRoot     string
	Suffix         string   // Input name filter, default "raw.fits"
	Categories     []Category
	RunArgs        []string // Arguments before the input path, default "-v -1"
	MaxWorkers     int
	DequeueTimeout time.Duration
	// MoveResults moves generated products from DataRoot to
	// OutputRoot/results once every job has finished.
	MoveResults bool
	// KeepPatterns name the files left in DataRoot by the move.
	KeepPatterns []string
}

func (opts *Options) suffix() string {
	if opts.Suffix == "" {
		return selection.DefaultSuffix
	}
	return opts.Suffix
}

// absolute returns a copy of opts with ExecPath and OutputRoot made absolute.
// Programs run with the output root as working directory, where a relative
// program path would resolve against the wrong directory.
func (opts Options) absolute() (Options, error) {
	for _, p := range []*string{&opts.ExecPath, &opts.OutputRoot} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return opts, fmt.Errorf("resolve %q: %w", *p, err)
		}
		*p = abs
	}
	return opts, nil
}

func (opts *Options) keepPatterns() []string {
	if len(opts.KeepPatterns) == 0 {
		return []string{"*" + opts.suffix()}
	}
	return opts.KeepPatterns
}

// PlannedCategory is a category with its discovered inputs in sorted order.
type PlannedCategory struct {
	Category Category
	Inputs   []string
}

// Plan is the outcome of discovery.
type Plan struct {
	Categories []PlannedCategory
	WalkTime   time.Duration
}

// Total returns the number of inputs across all categories.
func (p *Plan) Total() int {
	n := 0
	for _, c := range p.Categories {
		n += len(c.Inputs)
	}
	return n
}

// Orchestrator discovers inputs, runs every job on a worker pool and
// aggregates the results into a RunSummary.
type Orchestrator struct {
	discoverer *selection.Discoverer
	logger     Logger
}

// NewOrchestrator creates an Orchestrator. The logger parameter is optional
// and can be nil.
func NewOrchestrator(discoverer *selection.Discoverer, logger Logger) *Orchestrator {
	if discoverer == nil {
		panic("discoverer cannot be nil")
	}
	return &Orchestrator{
		discoverer: discoverer,
		logger:     logger,
	}
}

// Preflight checks the paths of a run before anything is discovered or
// created. Every failure is a *StructuralError.
func (o *Orchestrator) Preflight(opts Options) error {
	if len(opts.Categories) == 0 {
		return NewStructuralError(KindBadArguments, "", "no test categories configured", nil)
	}
	if err := requireDir(opts.DataRoot, KindMissingDataRoot); err != nil {
		return err
	}
	if err := requireDir(opts.ExecPath, KindMissingExecPath); err != nil {
		return err
	}
	if opts.OutputRoot == "" {
		return NewStructuralError(KindBadArguments, "", "output path is required", nil)
	}
	if _, err := os.Stat(opts.OutputRoot); err == nil {
		return NewStructuralError(KindOutputCollision, opts.OutputRoot, "delete it or use another path", fs.ErrExist)
	}
	if opts.MoveResults && within(opts.DataRoot, opts.OutputRoot) {
		return NewStructuralError(KindOutputCollision, opts.OutputRoot,
			"output path is inside the data root and would be moved into its own results", nil)
	}
	return nil
}

func requireDir(path string, kind StructuralKind) error {
	info, err := os.Stat(path)
	if err != nil {
		return NewStructuralError(kind, path, "path does not exist", err)
	}
	if !info.IsDir() {
		return NewStructuralError(kind, path, "not a directory", nil)
	}
	return nil
}

// within reports whether path lies inside root.
func within(root, path string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Discover runs every category's selection over the data root. It returns
// ErrNoInputs when nothing at all was found.
func (o *Orchestrator) Discover(opts Options) (*Plan, error) {
	start := time.Now()
	plan := &Plan{}
	for _, cat := range opts.Categories {
		set, err := o.discoverer.Select(opts.DataRoot, opts.suffix(), cat.Selection)
		if err != nil {
			return nil, fmt.Errorf("discover %s inputs: %w", cat.Name, err)
		}
		plan.Categories = append(plan.Categories, PlannedCategory{Category: cat, Inputs: set.Sorted()})
		if o.logger != nil {
			o.logger.LogCategory(models.CategorySummary{
				Name:       cat.Name,
				Executable: cat.Executable,
				Inputs:     set.Len(),
			})
		}
	}
	plan.WalkTime = time.Since(start)
	o.info(fmt.Sprintf("Time taken to walk directory tree: %s", plan.WalkTime.Round(time.Millisecond)))

	if plan.Total() == 0 {
		return plan, ErrNoInputs
	}
	return plan, nil
}

// Execute runs a plan. Executables are checked for every category that has
// inputs before any job is queued; the output root is created only after the
// queue is filled so a failed check leaves nothing behind. Per-job failures
// are reported in the summary and never returned as errors.
func (o *Orchestrator) Execute(ctx context.Context, opts Options, plan *Plan) (*models.RunSummary, error) {
	if plan == nil {
		return nil, fmt.Errorf("plan cannot be nil")
	}
	opts, err := opts.absolute()
	if err != nil {
		return nil, err
	}
	startedAt := time.Now()

	executables := make(map[string]string, len(plan.Categories))
	for _, pc := range plan.Categories {
		if len(pc.Inputs) == 0 {
			continue
		}
		exe := filepath.Join(opts.ExecPath, pc.Category.Executable)
		info, err := os.Stat(exe)
		if err != nil || info.IsDir() {
			return nil, NewStructuralError(KindMissingExecutable, exe, "the required executable does not exist", err)
		}
		executables[pc.Category.Name] = exe
	}

	queue := NewQueue()
	var jobs []*Job
	for _, pc := range plan.Categories {
		exe, ok := executables[pc.Category.Name]
		if !ok {
			continue
		}
		for _, input := range pc.Inputs {
			job := NewJob(ctx, input, exe, opts.OutputRoot, JobOptions{
				Category: pc.Category.Name,
				RunArgs:  opts.RunArgs,
			})
			queue.Enqueue(job)
			jobs = append(jobs, job)
		}
	}

	if err := fileutil.MakeOutputDir(opts.OutputRoot, false); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, NewStructuralError(KindOutputCollision, opts.OutputRoot, "", err)
		}
		return nil, err
	}

	lock, err := filelock.LockDir(opts.OutputRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			o.warn(err.Error())
		}
	}()

	tally := NewTally()
	pool := NewPool(queue, tally, o.logger, PoolConfig{
		MaxWorkers:     opts.MaxWorkers,
		DequeueTimeout: opts.DequeueTimeout,
	})
	o.info(fmt.Sprintf("Using %d worker(s) to run %d job(s).", pool.Workers(), len(jobs)))

	runErr := pool.Run(ctx)

	summary := o.summarize(opts, plan, jobs, pool, tally)
	summary.StartedAt = startedAt
	summary.Workers = pool.Workers()

	if opts.MoveResults && runErr == nil {
		dst := filepath.Join(opts.OutputRoot, ResultsDirName)
		o.info(fmt.Sprintf("Moving generated products in %q to %q.", opts.DataRoot, dst))
		if err := fileutil.MoveTree(opts.DataRoot, dst, fileutil.IgnorePatterns(opts.keepPatterns()...)); err != nil {
			o.warn(fmt.Sprintf("some results could not be moved: %v", err))
		}
	}

	summary.Duration = time.Since(startedAt)
	if o.logger != nil {
		o.logger.LogSummary(*summary)
	}
	return summary, runErr
}

// Run is Preflight, Discover and Execute in sequence.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*models.RunSummary, error) {
	if err := o.Preflight(opts); err != nil {
		return nil, err
	}
	plan, err := o.Discover(opts)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, opts, plan)
}

// summarize aggregates outcomes in queue order. Pass and fail totals come
// from the tally; they are read only after every worker has been joined.
func (o *Orchestrator) summarize(opts Options, plan *Plan, jobs []*Job, pool *Pool, tally *Tally) *models.RunSummary {
	summary := &models.RunSummary{
		RunID:      uuid.NewString(),
		DataRoot:   opts.DataRoot,
		OutputRoot: opts.OutputRoot,
		Total:      len(jobs),
		Passed:     int(tally.Passed.Value()),
		Failed:     int(tally.Failed.Value()),
	}

	byCategory := make(map[string]*models.CategorySummary)
	for _, pc := range plan.Categories {
		summary.Categories = append(summary.Categories, models.CategorySummary{
			Name:       pc.Category.Name,
			Executable: pc.Category.Executable,
			Inputs:     len(pc.Inputs),
		})
	}
	for i := range summary.Categories {
		byCategory[summary.Categories[i].Name] = &summary.Categories[i]
	}

	for _, job := range jobs {
		outcome, ok := pool.Outcome(job)
		if !ok {
			outcome = job.Outcome()
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		if cs := byCategory[outcome.Category]; cs != nil {
			if outcome.Passed() {
				cs.Passed++
			} else {
				cs.Failed++
			}
		}
	}
	return summary
}

func (o *Orchestrator) info(message string) {
	if o.logger != nil {
		o.logger.LogInfo(message)
	}
}

func (o *Orchestrator) warn(message string) {
	if o.logger != nil {
		o.logger.LogWarn(message)
	}
}
