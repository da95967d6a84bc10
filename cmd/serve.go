package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/engine"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/scenario"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/service"
	"github.com/FredericoPerimLopes/StratCap-sub001/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the waterfall HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/runs", handleRun(ctx, svc))
		r.Get("/calculations", handleList(st))
		r.Get("/calculations/{id}", handleShow(st))
		r.Get("/calculations/{id}/audit", handleAudit(st))
		r.Post("/calculations/{id}/post", handlePost(svc))
		r.Post("/calculations/{id}/reverse", handleReverse(svc))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// handleRun accepts a scenario YAML document, creates the calculation, and
// runs the waterfall asynchronously. The response carries the calculation ID
// so clients can poll for the outcome.
func handleRun(ctx context.Context, svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
			return
		}
		sc, err := scenario.Parse(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		calc, err := svc.CreateCalculation(r.Context(), service.CreateRequest{
			FundID:             sc.FundID,
			Name:               sc.Name,
			TotalDistributable: sc.TotalDistributable,
		})
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		// Run against the server context so in-flight calculations survive
		// request disconnects; shutdown still cancels them.
		go func() {
			_, runErr := svc.Run(ctx, calc.ID, service.RunSpec{
				Tiers:       sc.Tiers,
				Commitments: sc.Commitments,
				Basis:       sc.Basis,
				GPID:        sc.GPID,
			})
			if runErr != nil {
				zap.L().Warn("async waterfall run did not validate",
					zap.String("calculation", calc.ID),
					zap.Error(runErr),
				)
				return
			}
			zap.L().Info("async waterfall run validated", zap.String("calculation", calc.ID))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":         "accepted",
			"calculation_id": calc.ID,
		})
	}
}

func handleList(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calcs, err := st.ListCalculations(r.Context(), store.CalculationFilter{
			FundID: r.URL.Query().Get("fund"),
			Status: model.CalculationStatus(r.URL.Query().Get("status")),
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, calcs)
	}
}

func handleShow(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		calc, err := st.GetCalculation(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		tiers, err := st.ListTiers(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		events, err := st.ListEvents(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"calculation": calc,
			"tiers":       tiers,
			"events":      events,
		})
	}
}

func handleAudit(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := st.GetCalculation(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		steps, err := st.ListAuditSteps(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"calculation_id": id,
			"steps":          steps,
			"summary":        engine.Summarize(steps),
		})
	}
}

func handlePost(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Post(r.Context(), id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "posted", "calculation_id": id})
	}
}

func handleReverse(svc *service.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		reversal, err := svc.Reverse(r.Context(), id)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":         "reversed",
			"calculation_id": id,
			"reversal_id":    reversal.ID,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeStoreError(w http.ResponseWriter, err error) {
	status := http.StatusUnprocessableEntity
	if errors.Is(err, store.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
