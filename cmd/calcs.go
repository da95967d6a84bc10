package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

var (
	calcsFund   string
	calcsStatus string
	calcsLimit  int
)

var calcsCmd = &cobra.Command{
	Use:   "calcs",
	Short: "Inspect waterfall calculations",
}

var calcsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List calculations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		calcs, err := st.ListCalculations(ctx, store.CalculationFilter{
			FundID: calcsFund,
			Status: model.CalculationStatus(calcsStatus),
			Limit:  calcsLimit,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(calcs)
	},
}

var calcsShowCmd = &cobra.Command{
	Use:   "show <calculation-id>",
	Short: "Show a calculation with its tiers and events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		calc, err := st.GetCalculation(ctx, args[0])
		if err != nil {
			return err
		}
		tiers, err := st.ListTiers(ctx, calc.ID)
		if err != nil {
			return err
		}
		events, err := st.ListEvents(ctx, calc.ID)
		if err != nil {
			return err
		}

		out := map[string]any{
			"calculation": calc,
			"tiers":       tiers,
			"events":      events,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	calcsListCmd.Flags().StringVar(&calcsFund, "fund", "", "filter by fund ID")
	calcsListCmd.Flags().StringVar(&calcsStatus, "status", "", "filter by status")
	calcsListCmd.Flags().IntVar(&calcsLimit, "limit", 50, "maximum rows")
	calcsCmd.AddCommand(calcsListCmd, calcsShowCmd)
	rootCmd.AddCommand(calcsCmd)
}
