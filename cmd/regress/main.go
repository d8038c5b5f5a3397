package main

import (
	"fmt"
	"os"

	"github.com/harrison/regress/internal/cmd"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = ""

func main() {
	if version != "" {
		cmd.Version = version
	}
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
