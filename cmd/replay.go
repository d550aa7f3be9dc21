package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaharia-lab/tablebus/internal/config"
	"github.com/shaharia-lab/tablebus/internal/eventbus"
	"github.com/shaharia-lab/tablebus/internal/logger"
	"github.com/shaharia-lab/tablebus/internal/scenario"
)

// NewReplayCmd returns the "replay" subcommand that plays a scenario file
// through an isolated bus and prints the resulting history.
func NewReplayCmd(cfg *config.AppConfig) *cobra.Command {
	var capacity int

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Emit a scripted sequence of events and print the bus history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			s, err := scenario.Load(args[0])
			if err != nil {
				return err
			}

			// --capacity wins, then the scenario file, then HISTORY_CAPACITY.
			size := cfg.HistoryCapacity
			if s.HistoryCapacity > 0 {
				size = s.HistoryCapacity
			}
			if cmd.Flags().Changed("capacity") {
				size = capacity
			}

			return runReplay(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, s, size)
		},
	}

	cmd.Flags().IntVar(&capacity, "capacity", 0, "History capacity for the replay bus")
	return cmd
}

func runReplay(ctx context.Context, out, errOut io.Writer, cfg *config.AppConfig, s *scenario.Scenario, capacity int) error {
	bus := eventbus.New(
		eventbus.WithHistoryCapacity(capacity),
		eventbus.WithLogger(logger.New(errOut, cfg.SlogLevel())),
	)

	history, err := scenario.Run(ctx, bus, s)
	if err != nil {
		return fmt.Errorf("replaying %q: %w", s.Name, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(history)
}
