package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var postCmd = &cobra.Command{
	Use:   "post <calculation-id>",
	Short: "Post a validated calculation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := svc.Post(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("calculation posted", zap.String("calculation", args[0]))
		return nil
	},
}

var reverseCmd = &cobra.Command{
	Use:   "reverse <calculation-id>",
	Short: "Reverse a posted calculation with an offsetting one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		reversal, err := svc.Reverse(ctx, args[0])
		if err != nil {
			return err
		}
		zap.L().Info("calculation reversed",
			zap.String("calculation", args[0]),
			zap.String("reversal", reversal.ID),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(postCmd, reverseCmd)
}
