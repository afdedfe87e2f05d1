package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/kilianp07/responder/app"
	"github.com/kilianp07/responder/core/model"
)

var eventInput model.EventInput

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Declare and amend events",
}

var eventDeclareCmd = &cobra.Command{
	Use:   "declare",
	Short: "Declare a new event and request proposals",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			ev, err := svc.Coordinator.Declare(ctx, eventInput)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ev)
		})
	},
}

var eventAmendCmd = &cobra.Command{
	Use:   "amend <event-id>",
	Short: "Amend an event; changes to location, type or severity re-request proposals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, svc *app.Service) error {
			ev, err := svc.Coordinator.Amend(ctx, args[0], eventInput)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ev)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{eventDeclareCmd, eventAmendCmd} {
		f := c.Flags()
		f.StringVar(&eventInput.Type, "type", "", "event type, e.g. Fire")
		f.StringVar(&eventInput.Severity, "severity", "", "severity level, e.g. High")
		f.StringVar(&eventInput.Description, "description", "", "free text description")
		f.Float64Var(&eventInput.Location.Latitude, "lat", 0, "latitude")
		f.Float64Var(&eventInput.Location.Longitude, "lon", 0, "longitude")
		_ = c.MarkFlagRequired("type")
		_ = c.MarkFlagRequired("severity")
	}
	eventCmd.AddCommand(eventDeclareCmd, eventAmendCmd)
	rootCmd.AddCommand(eventCmd)
}
