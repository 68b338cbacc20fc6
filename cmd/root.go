package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ctramp/app"
	"github.com/kilianp07/ctramp/config"
	coremon "github.com/kilianp07/ctramp/core/monitoring"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "ctramp",
	Short:        "Household tour scheduling services and workers",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// withRuntime loads the configuration, builds the runtime and runs fn with a
// context canceled on SIGINT or SIGTERM.
func withRuntime(fn func(ctx context.Context, rt *app.Runtime) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt, err := app.NewRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()
	defer coremon.Recover()
	if err := fn(ctx, rt); err != nil {
		coremon.CaptureException(err, map[string]string{"module": "cmd"})
		return err
	}
	return nil
}
