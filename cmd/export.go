package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/export"
)

var (
	exportOut  string
	exportText bool
)

var exportCmd = &cobra.Command{
	Use:   "export <calculation-id>",
	Short: "Write a distribution statement workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
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
		steps, err := st.ListAuditSteps(ctx, calc.ID)
		if err != nil {
			return err
		}

		stmt := &export.Statement{
			Calculation: calc,
			Tiers:       tiers,
			Events:      events,
			Summary:     engine.Summarize(steps),
			Currency:    cfg.Export.Currency,
		}

		if exportText {
			return stmt.RenderText(os.Stdout)
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.Export.OutDir, calc.ID+".xlsx")
		}
		if err := stmt.WriteXLSX(out); err != nil {
			return err
		}
		zap.L().Info("statement written",
			zap.String("calculation", calc.ID),
			zap.String("path", out),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default <out_dir>/<calculation-id>.xlsx)")
	exportCmd.Flags().BoolVar(&exportText, "text", false, "print a text statement to stdout instead")
	rootCmd.AddCommand(exportCmd)
}
