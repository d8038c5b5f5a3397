package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/executor"
	"github.com/harrison/regress/internal/fileutil"
)

// NewMoveCommand creates the move command
func NewMoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <src> <dst>",
		Short: "Move generated products out of a data tree",
		Long: `Move every file in <src> except the raw inputs into <dst>/results, keeping
the directory layout. <dst> may already exist.`,
		Args: cobra.ExactArgs(2),
		RunE: runMove,
	}
}

func runMove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	src, dst := args[0], args[1]

	if err := fileutil.MakeOutputDir(dst, true); err != nil {
		return err
	}
	dst = filepath.Join(dst, executor.ResultsDirName)

	fmt.Fprintf(cmd.OutOrStdout(), "Moving all non *%s files in %q to %q.\n", cfg.Suffix, src, dst)
	return fileutil.MoveTree(src, dst, fileutil.IgnorePatterns("*"+cfg.Suffix))
}

// NewCleanCommand creates the clean command
func NewCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <path>",
		Short: "Remove everything but the raw inputs from a data tree",
		Args:  cobra.ExactArgs(1),
		RunE:  runClean,
	}
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleaning: removing all non *%s files from %q\n", cfg.Suffix, args[0])
	return fileutil.CleanTree(args[0], fileutil.IgnorePatterns("*"+cfg.Suffix))
}
