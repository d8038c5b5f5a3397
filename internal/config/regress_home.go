package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the directory holding logs and the history database.
const HomeEnv = "REGRESS_HOME"

// GetRegressHome returns the regress home directory
// Priority order:
//  1. REGRESS_HOME environment variable (if set)
//  2. .regress under the current working directory
//
// The directory is created if it doesn't exist
func GetRegressHome() (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create regress home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".regress")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create regress home directory: %w", err)
	}
	return home, nil
}

// ResolvePaths anchors the relative log and history paths of the default
// configuration at home so runs started from different directories share
// them. Absolute paths and paths set explicitly are left untouched.
func (c *Config) ResolvePaths(home string) {
	defaults := DefaultConfig()
	if c.LogDir == defaults.LogDir {
		c.LogDir = filepath.Join(home, "logs")
	}
	if c.History.DBPath == defaults.History.DBPath {
		c.History.DBPath = filepath.Join(home, "history.db")
	}
}
