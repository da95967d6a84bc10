package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/scenario"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/service"
)

var (
	runScenario string
	runPost     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a waterfall calculation from a scenario file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("run"); err != nil {
			return err
		}
		ctx := cmd.Context()

		sc, err := scenario.Load(runScenario)
		if err != nil {
			return err
		}

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		calc, err := svc.CreateCalculation(ctx, service.CreateRequest{
			FundID:             sc.FundID,
			Name:               sc.Name,
			TotalDistributable: sc.TotalDistributable,
		})
		if err != nil {
			return err
		}

		result, runErr := svc.Run(ctx, calc.ID, service.RunSpec{
			Tiers:       sc.Tiers,
			Commitments: sc.Commitments,
			Basis:       sc.Basis,
			GPID:        sc.GPID,
		})
		if runErr != nil && result == nil {
			return eris.Wrap(runErr, "waterfall run")
		}

		zap.L().Info("waterfall run complete",
			zap.String("calculation", calc.ID),
			zap.String("fund", sc.FundID),
			zap.Bool("valid", runErr == nil),
			zap.String("distributed", result.TotalDistributed.String()),
			zap.Int("events", len(result.Events)),
		)

		if runPost && runErr == nil {
			if err := svc.Post(ctx, calc.ID); err != nil {
				return eris.Wrap(err, "post calculation")
			}
			zap.L().Info("calculation posted", zap.String("calculation", calc.ID))
		}

		out := map[string]any{
			"calculation_id":    calc.ID,
			"total_distributed": result.TotalDistributed,
			"lp_total":          result.LPTotal,
			"gp_total":          result.GPTotal,
			"summary":           result.Summary,
			"reconciliation":    result.Reconciliation,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "scenario YAML file (required)")
	runCmd.Flags().BoolVar(&runPost, "post", false, "post the calculation when validation passes")
	_ = runCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(runCmd)
}
