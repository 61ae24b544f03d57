package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/listbot/internal/config"
	"github.com/kailas-cloud/listbot/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "listbot",
		Short:         "Conversational question answering over the listings corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("env", config.GetEnv(), "configuration environment (local, dev, prod)")

	rootCmd.AddCommand(
		serveCmd(),
		askCmd(),
		indexCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func envFlag(cmd *cobra.Command) string {
	return cmd.Flag("env").Value.String()
}
