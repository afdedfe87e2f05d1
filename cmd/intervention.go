package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/responder/app"
)

var interventionCmd = &cobra.Command{
	Use:   "intervention",
	Short: "Validate, follow and close interventions",
}

var validateCmd = &cobra.Command{
	Use:   "validate <event-id> [vehicle-id...]",
	Short: "Commit the chosen vehicles and decline every other proposal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			if err := svc.Coordinator.Validate(ctx, args[0], args[1:]); err != nil {
				return err
			}
			return printEvent(ctx, cmd, svc, args[0])
		})
	},
}

var arriveCmd = &cobra.Command{
	Use:   "arrive <event-id> <vehicle-id>",
	Short: "Mark a committed vehicle as on scene",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			if err := svc.Coordinator.Arrive(ctx, args[0], args[1]); err != nil {
				return err
			}
			return printVehicle(ctx, cmd, svc, args[1])
		})
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <event-id> <vehicle-id>",
	Short: "End a vehicle's participation in an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			if err := svc.Coordinator.CloseIntervention(ctx, args[0], args[1]); err != nil {
				return err
			}
			return printEvent(ctx, cmd, svc, args[0])
		})
	},
}

func init() {
	interventionCmd.AddCommand(validateCmd, arriveCmd, closeCmd)
	rootCmd.AddCommand(interventionCmd)
}

func printEvent(ctx context.Context, cmd *cobra.Command, svc *app.Service, eventID string) error {
	snap, err := svc.Store.EventSnapshot(ctx, eventID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap)
}

func printVehicle(ctx context.Context, cmd *cobra.Command, svc *app.Service, vehicleID string) error {
	snap, err := svc.Store.VehicleSnapshot(ctx, vehicleID)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), snap)
}
