package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ctramp/api/trace"
	"github.com/kilianp07/ctramp/app"
	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/core/random"
	"github.com/kilianp07/ctramp/infra/logger"
	"github.com/kilianp07/ctramp/infra/rpc"
	"github.com/kilianp07/ctramp/infra/tracelog"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Mark or rewind the random streams of every household",
}

var stageMarkCmd = &cobra.Command{
	Use:   "mark <stage>",
	Short: "Record the current draw counts as the start of a stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return onHouseholds(cmd.Context(), args[0], (*rpc.HouseholdClient).MarkStage)
	},
}

var stageResetCmd = &cobra.Command{
	Use:   "reset <stage>",
	Short: "Rewind every household stream to the start of a stage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return onHouseholds(cmd.Context(), args[0], (*rpc.HouseholdClient).ResetStage)
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace <household-id>",
	Short: "Print the trace records of a debug household",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

var (
	traceListen string
	traceToken  string
)

var traceServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trace records over HTTP at /api/trace",
	RunE:  runTraceServe,
}

func init() {
	traceServeCmd.Flags().StringVar(&traceListen, "listen", ":8090", "listen address")
	traceServeCmd.Flags().StringVar(&traceToken, "token", "", "bearer token required from clients")
	traceCmd.AddCommand(traceServeCmd)
	stageCmd.AddCommand(stageMarkCmd, stageResetCmd)
	rootCmd.AddCommand(stageCmd, traceCmd)
}

func onHouseholds(ctx context.Context, name string, fn func(*rpc.HouseholdClient, context.Context, random.Stage) error) error {
	stage, err := random.ParseStage(name)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := rpc.NewHouseholdClient(cfg.Household.Endpoint, app.ClientOptions(cfg.Remote))
	if err != nil {
		return err
	}
	return fn(c, ctx, stage)
}

func runTrace(cmd *cobra.Command, args []string) error {
	var id int
	if _, err := fmt.Sscan(args[0], &id); err != nil {
		return fmt.Errorf("household id %q: %w", args[0], err)
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := tracelog.New(cfg.Trace)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recs, err := store.Query(cmd.Context(), id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

func runTraceServe(cmd *cobra.Command, args []string) error {
	return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
		store, err := tracelog.New(rt.Config.Trace)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		mux := rpc.NewMux(map[string]http.Handler{"/api/trace": trace.NewHandler(store, traceToken)})
		return rpc.Serve(ctx, traceListen, mux, logger.New("trace-api"))
	})
}
