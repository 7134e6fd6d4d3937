package cmd

import (
	"facewatch-go/internal/app"

	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(serveConfigPath)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.AddCommand(serveCmd)
}
