package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"latch/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("latch %s\n", version.Version)
		if version.GitCommit != "" {
			fmt.Printf("commit: %s\n", version.GitCommit)
		}
		if version.BuildDate != "" {
			fmt.Printf("built:  %s\n", version.BuildDate)
		}
	},
}
