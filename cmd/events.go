package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Manage distribution event payments",
}

var eventsMarkCmd = &cobra.Command{
	Use:   "mark <event-id> <status>",
	Short: "Advance an event's payment status (processed, paid, failed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		next := model.PaymentStatus(args[1])
		if err := st.MarkEventStatus(ctx, args[0], next); err != nil {
			return err
		}
		zap.L().Info("event payment status updated",
			zap.String("event", args[0]),
			zap.String("status", args[1]),
		)
		return nil
	},
}

var eventsReissueCmd = &cobra.Command{
	Use:   "reissue <event-id>",
	Short: "Reissue a failed payment as a fresh pending event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reissued, err := st.ReissueEvent(ctx, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("event reissued",
			zap.String("failed_event", args[0]),
			zap.String("new_event", reissued.ID),
		)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(reissued)
	},
}

func init() {
	eventsCmd.AddCommand(eventsMarkCmd, eventsReissueCmd)
	rootCmd.AddCommand(eventsCmd)
}
