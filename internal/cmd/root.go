package cmd

import (
	"fmt"
	"os"

	"facewatch-go/internal/version"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "facewatch",
	Short:   "DeepStack face recognition bridge for Home Assistant",
	Version: version.Version,
}

// Execute runs the CLI.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
