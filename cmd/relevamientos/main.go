package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "relevamientos",
		Short:         "Site survey form with PDF reports",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment variables from this file before .env")

	rootCmd.AddCommand(
		serveCommand(),
		migrateCommand(),
		regenerateCommand(),
	)
	return rootCmd
}
