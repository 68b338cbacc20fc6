package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/ctramp/app"
	"github.com/kilianp07/ctramp/config"
	"github.com/kilianp07/ctramp/infra/rpc"
)

var (
	exportDir    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the tours and trips held by the household server",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "output", "output directory")
	exportCmd.Flags().StringVar(&exportFormat, "format", app.FormatCSV, "csv or json")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := rpc.NewHouseholdClient(cfg.Household.Endpoint, app.ClientOptions(cfg.Remote))
	if err != nil {
		return err
	}
	paths, err := app.Export(cmd.Context(), c, exportDir, exportFormat, cfg.Household.ChunkSize)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
