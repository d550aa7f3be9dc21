package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/tablebus/internal/config"
)

// NewRootCmd builds the command tree around cfg.
func NewRootCmd(cfg *config.AppConfig) *cobra.Command {
	root := &cobra.Command{
		Use:           "tablebus",
		Short:         "Restaurant event hub",
		Long:          "Tablebus lets the restaurant apps exchange domain events through a shared in-memory bus.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(NewServeCmd(cfg))
	root.AddCommand(NewReplayCmd(cfg))
	root.AddCommand(NewVersionCmd())
	return root
}

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := NewRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
