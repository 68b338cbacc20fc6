package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ctramp/app"
)

var matrixServerCmd = &cobra.Command{
	Use:   "matrix-server",
	Short: "Serve cached skim matrices to workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
			return app.ServeMatrix(ctx, rt)
		})
	},
}

var householdServerCmd = &cobra.Command{
	Use:   "household-server",
	Short: "Serve the partitioned household store to workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(ctx context.Context, rt *app.Runtime) error {
			return app.ServeHouseholds(ctx, rt)
		})
	},
}

func init() {
	rootCmd.AddCommand(matrixServerCmd, householdServerCmd)
}
