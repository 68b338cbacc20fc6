package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ctramp/app"
	"github.com/kilianp07/ctramp/core/random"
)

var (
	partition  int
	partitions int
	replayFrom string
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the model stages over one partition of the households",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&partition, "partition", 0, "partition handled by this worker")
	workerCmd.Flags().IntVar(&partitions, "partitions", 1, "number of workers sharing the households")
	workerCmd.Flags().StringVar(&replayFrom, "replay-from", "", "rerun from the stage drawing on this random stage (e.g. imtod)")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	var from random.Stage = -1
	if replayFrom != "" {
		s, err := random.ParseStage(replayFrom)
		if err != nil {
			return err
		}
		from = s
	}
	return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
		svc, err := app.NewService(rt, partition, partitions)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		if from.Valid() {
			return svc.Replay(ctx, from)
		}
		return svc.Run(ctx)
	})
}
