package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/regress/internal/executor"
	"github.com/harrison/regress/internal/selection"
)

// NewFindCommand creates the find command
func NewFindCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <path> <keyword> <value> [<and|or> <keyword> <value>]...",
		Short: "List data files whose header matches a selection",
		Long: `Recurse through <path> for raw data files whose primary header has <keyword>
set to <value>, then apply each further predicate left to right: "and" keeps
only the files found so far that also match, "or" adds every file under
<path> that matches. Values t/true and f/false match boolean keywords; any
other value is compared case-insensitively as text.

Examples:
  regress find /data/regress INSTRUME WFC3
  regress find /data/regress INSTRUME WFC3 and PCTECORR PERFORM
  regress find /data/regress INSTRUME ACS or INSTRUME STIS`,
		Args: cobra.MinimumNArgs(3),
		RunE: runFind,
	}

	cmd.Flags().String("suffix", "", "Only consider file names containing this suffix (default: from config, raw.fits)")

	return cmd
}

func runFind(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	query, err := selection.ParseQuery(args)
	if err != nil {
		if errors.Is(err, selection.ErrBadQuery) {
			return executor.NewStructuralError(executor.KindBadArguments, "", "find", err)
		}
		return err
	}

	suffix := cfg.Suffix
	if s, _ := cmd.Flags().GetString("suffix"); s != "" {
		suffix = s
	}

	out := cmd.OutOrStdout()
	log := consoleOnly(cmd.ErrOrStderr(), cfg.LogLevel)
	discoverer := selection.NewDiscoverer(selection.NewFilter(nil, log))

	found, err := query.Run(discoverer, suffix)
	if err != nil {
		return err
	}

	for _, path := range found.Sorted() {
		fmt.Fprintln(out, path)
	}
	fmt.Fprintf(out, "%d files found\n", found.Len())
	return nil
}
