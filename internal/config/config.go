package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/regress/internal/compare"
	"github.com/harrison/regress/internal/executor"
	"github.com/harrison/regress/internal/fits"
	"github.com/harrison/regress/internal/schema"
	"github.com/harrison/regress/internal/selection"
)

// FilterConfig is one chained clause of a category selection.
type FilterConfig struct {
	Op      string `yaml:"op"`
	Keyword string `yaml:"keyword"`
	Value   string `yaml:"value"`
}

// CategoryConfig binds a header selection to the program that processes it.
type CategoryConfig struct {
	Name       string         `yaml:"name"`
	Executable string         `yaml:"executable"`
	Keyword    string         `yaml:"keyword"`
	Value      string         `yaml:"value"`
	Filters    []FilterConfig `yaml:"filters"`
}

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run and comparison in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the SQLite history database
	DBPath string `yaml:"db_path"`
}

// ReportConfig selects the report formats written next to the run output.
type ReportConfig struct {
	Markdown bool `yaml:"markdown"`
	HTML     bool `yaml:"html"`
}

// Config represents regress configuration options
type Config struct {
	// MaxThreads is the number of workers (0 = every available core)
	MaxThreads int `yaml:"max_threads"`

	// DequeueTimeout is how long an idle worker waits for a job before exiting
	DequeueTimeout time.Duration `yaml:"dequeue_timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// RunArgs are passed to every program before the input path
	RunArgs []string `yaml:"run_args"`

	// Suffix selects input files by name
	Suffix string `yaml:"suffix"`

	// DataExtension selects the files that get a structural diff
	DataExtension string `yaml:"data_extension"`

	// LooseSuffix names files whose differences only loosen a pass
	LooseSuffix string `yaml:"loose_suffix"`

	// IgnoreKeywords are header keywords skipped by the structural diff
	IgnoreKeywords []string `yaml:"ignore_keywords"`

	// Categories replace the built-in pipeline suite when set
	Categories []CategoryConfig `yaml:"categories"`

	// CTECategories replace the built-in CTE suite when set
	CTECategories []CategoryConfig `yaml:"cte_categories"`

	History HistoryConfig `yaml:"history"`
	Report  ReportConfig  `yaml:"report"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxThreads:     0,
		DequeueTimeout: executor.DefaultDequeueTimeout,
		LogLevel:       "info",
		LogDir:         filepath.Join(".regress", "logs"),
		RunArgs:        append([]string(nil), executor.DefaultRunArgs...),
		Suffix:         selection.DefaultSuffix,
		DataExtension:  ".fits",
		LooseSuffix:    ".log",
		IgnoreKeywords: []string{"DATE"},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  filepath.Join(".regress", "history.db"),
		},
		Report: ReportConfig{
			Markdown: true,
			HTML:     false,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed or fails schema validation, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := schema.ValidateConfigYAML(data); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	// Durations are strings in YAML
	type yamlConfig struct {
		MaxThreads     int              `yaml:"max_threads"`
		DequeueTimeout string           `yaml:"dequeue_timeout"`
		LogLevel       string           `yaml:"log_level"`
		LogDir         string           `yaml:"log_dir"`
		RunArgs        []string         `yaml:"run_args"`
		Suffix         string           `yaml:"suffix"`
		DataExtension  string           `yaml:"data_extension"`
		LooseSuffix    string           `yaml:"loose_suffix"`
		IgnoreKeywords []string         `yaml:"ignore_keywords"`
		Categories     []CategoryConfig `yaml:"categories"`
		CTECategories  []CategoryConfig `yaml:"cte_categories"`
		History        HistoryConfig    `yaml:"history"`
		Report         ReportConfig     `yaml:"report"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Presence, not zero-ness, decides whether a key overrides its default
	var rawMap map[string]any
	if err := yaml.Unmarshal(data, &rawMap); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	has := func(section map[string]any, key string) bool {
		_, ok := section[key]
		return ok
	}

	if has(rawMap, "max_threads") {
		cfg.MaxThreads = yamlCfg.MaxThreads
	}
	if yamlCfg.DequeueTimeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.DequeueTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid dequeue_timeout format %q: %w", yamlCfg.DequeueTimeout, err)
		}
		cfg.DequeueTimeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if has(rawMap, "run_args") {
		cfg.RunArgs = yamlCfg.RunArgs
	}
	if yamlCfg.Suffix != "" {
		cfg.Suffix = yamlCfg.Suffix
	}
	if yamlCfg.DataExtension != "" {
		cfg.DataExtension = yamlCfg.DataExtension
	}
	if yamlCfg.LooseSuffix != "" {
		cfg.LooseSuffix = yamlCfg.LooseSuffix
	}
	if has(rawMap, "ignore_keywords") {
		cfg.IgnoreKeywords = yamlCfg.IgnoreKeywords
	}
	if len(yamlCfg.Categories) > 0 {
		cfg.Categories = yamlCfg.Categories
	}
	if len(yamlCfg.CTECategories) > 0 {
		cfg.CTECategories = yamlCfg.CTECategories
	}

	if section, ok := rawMap["history"].(map[string]any); ok {
		if has(section, "enabled") {
			cfg.History.Enabled = yamlCfg.History.Enabled
		}
		if has(section, "db_path") {
			cfg.History.DBPath = yamlCfg.History.DBPath
		}
	}
	if section, ok := rawMap["report"].(map[string]any); ok {
		if has(section, "markdown") {
			cfg.Report.Markdown = yamlCfg.Report.Markdown
		}
		if has(section, "html") {
			cfg.Report.HTML = yamlCfg.Report.HTML
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .regress/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".regress", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(maxThreads *int, dequeueTimeout *time.Duration, logLevel *string, logDir *string) {
	if maxThreads != nil {
		c.MaxThreads = *maxThreads
	}
	if dequeueTimeout != nil {
		c.DequeueTimeout = *dequeueTimeout
	}
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxThreads < 0 {
		return fmt.Errorf("max_threads must be >= 0, got %d", c.MaxThreads)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.DequeueTimeout <= 0 {
		return fmt.Errorf("dequeue_timeout must be > 0, got %v", c.DequeueTimeout)
	}
	if c.Suffix == "" {
		return fmt.Errorf("suffix cannot be empty")
	}
	if !strings.HasPrefix(c.DataExtension, ".") {
		return fmt.Errorf("data_extension must start with '.', got %q", c.DataExtension)
	}
	if c.LooseSuffix == "" {
		return fmt.Errorf("loose_suffix cannot be empty")
	}

	for _, list := range [][]CategoryConfig{c.Categories, c.CTECategories} {
		if _, err := toCategories(list); err != nil {
			return err
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}

// ExecutorCategories returns the categories to run: the CTE suite when cte
// is set, otherwise the pipeline suite. Configured lists replace the
// built-in ones.
func (c *Config) ExecutorCategories(cte bool) ([]executor.Category, error) {
	if cte {
		if len(c.CTECategories) == 0 {
			return executor.CTECategories(), nil
		}
		return toCategories(c.CTECategories)
	}
	if len(c.Categories) == 0 {
		return executor.DefaultCategories(), nil
	}
	return toCategories(c.Categories)
}

func toCategories(list []CategoryConfig) ([]executor.Category, error) {
	seen := make(map[string]bool, len(list))
	out := make([]executor.Category, 0, len(list))
	for i, cc := range list {
		if cc.Name == "" || cc.Executable == "" || cc.Keyword == "" {
			return nil, fmt.Errorf("category %d: name, executable and keyword are required", i)
		}
		if seen[cc.Name] {
			return nil, fmt.Errorf("category %q defined twice", cc.Name)
		}
		seen[cc.Name] = true

		sel := selection.Selection{Keyword: cc.Keyword, Value: cc.Value}
		for _, f := range cc.Filters {
			op, err := selection.ParseOp(f.Op)
			if err != nil {
				return nil, fmt.Errorf("category %q: %w", cc.Name, err)
			}
			if f.Keyword == "" {
				return nil, fmt.Errorf("category %q: filter keyword is required", cc.Name)
			}
			sel.Clauses = append(sel.Clauses, selection.Clause{Op: op, Keyword: f.Keyword, Value: f.Value})
		}
		out = append(out, executor.Category{Name: cc.Name, Executable: cc.Executable, Selection: sel})
	}
	return out, nil
}

// ComparatorOptions returns the tree comparison settings.
func (c *Config) ComparatorOptions() compare.Options {
	opts := compare.DefaultOptions()
	opts.LooseSuffix = c.LooseSuffix
	opts.DataExtension = c.DataExtension
	opts.Diff = fits.DefaultDiffOptions()
	opts.Diff.IgnoreKeywords = append([]string(nil), c.IgnoreKeywords...)
	return opts
}

// RunOptions builds the options of one regression run.
func (c *Config) RunOptions(dataRoot, execPath, outputRoot string, cte bool) (executor.Options, error) {
	categories, err := c.ExecutorCategories(cte)
	if err != nil {
		return executor.Options{}, err
	}
	var runArgs []string
	if c.RunArgs != nil {
		runArgs = append([]string{}, c.RunArgs...)
	}
	return executor.Options{
		DataRoot:       dataRoot,
		ExecPath:       execPath,
		OutputRoot:     outputRoot,
		Suffix:         c.Suffix,
		Categories:     categories,
		RunArgs:        runArgs,
		MaxWorkers:     c.MaxThreads,
		DequeueTimeout: c.DequeueTimeout,
		MoveResults:    true,
	}, nil
}
