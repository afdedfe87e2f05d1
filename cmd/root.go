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

	"github.com/kilianp07/responder/app"
	"github.com/kilianp07/responder/config"
	"github.com/kilianp07/responder/infra/logger"
	"github.com/kilianp07/responder/infra/mqtt"
)

var (
	cfgPath string
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:          "responder",
	Short:        "Emergency dispatch coordinator",
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "print proposal requests instead of publishing them")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// withService builds a one-shot service for a command and closes it after fn
// returns. With --dry-run, proposal requests are printed instead of sent.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	opts := app.Options{}
	var pub *mqtt.MockPublisher
	if dryRun {
		pub = mqtt.NewMockPublisher()
		opts.Publisher = pub
	}
	svc, err := app.NewWithOptions(cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("cli").Errorf("service close: %v", err)
		}
	}()
	if err := fn(cmd.Context(), svc); err != nil {
		return err
	}
	if pub != nil {
		for _, d := range pub.Sent() {
			if err := printJSON(cmd.ErrOrStderr(), map[string]any{"would_publish": d}); err != nil {
				return err
			}
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
