package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/responder/app"
	"github.com/kilianp07/responder/core/model"
)

var fleetCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Fleet related commands",
}

var fleetImportCmd = &cobra.Command{
	Use:   "import <vehicles.json>",
	Short: "Register or update vehicles from a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE:  runFleetImport,
}

var fleetShowCmd = &cobra.Command{
	Use:   "show <vehicle-id>",
	Short: "Print a vehicle snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			return printVehicle(ctx, cmd, svc, args[0])
		})
	},
}

func init() {
	fleetCmd.AddCommand(fleetImportCmd, fleetShowCmd)
	rootCmd.AddCommand(fleetCmd)
}

func runFleetImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var vehicles []model.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	return withService(cmd, func(ctx context.Context, svc *app.Service) error {
		for _, v := range vehicles {
			if v.ID == "" {
				return fmt.Errorf("vehicle without id in %s", args[0])
			}
			if err := svc.Store.UpsertVehicle(ctx, v); err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), v.ID); err != nil {
				return err
			}
		}
		return nil
	})
}
