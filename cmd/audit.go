package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
)

var auditCmd = &cobra.Command{
	Use:   "audit <calculation-id>",
	Short: "Print the audit trail and its regenerated summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		steps, err := st.ListAuditSteps(ctx, args[0])
		if err != nil {
			return err
		}

		out := map[string]any{
			"calculation_id": args[0],
			"steps":          steps,
			"summary":        engine.Summarize(steps),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
