package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/donation-cli/internal/combine"
	"github.com/sells-group/donation-cli/internal/model"
	"github.com/sells-group/donation-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the review server for browsing and editing donations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Get("/batches", listBatchesHandler(st))
		r.Get("/batches/{batchID}", getBatchHandler(st))
		r.Get("/donations", listDonationsHandler(st))
		r.Get("/donations/{donationID}", getDonationHandler(st))
		r.Put("/donations/{donationID}", editDonationHandler(st))
		r.Post("/donations/{donationID}/revert", revertDonationHandler(st))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func listBatchesHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := st.ListBatches(r.Context(), store.BatchFilter{
			Status: model.BatchStatus(r.URL.Query().Get("status")),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, batches)
	}
}

func getBatchHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := st.GetBatch(r.Context(), chi.URLParam(r, "batchID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func listDonationsHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		donations, err := st.ListDonations(r.Context(), store.DonationFilter{
			BatchID: q.Get("batch_id"),
			Status:  model.MatchStatus(q.Get("status")),
			Unsent:  q.Get("unsent") == "true",
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, donations)
	}
}

func getDonationHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := st.GetDonation(r.Context(), chi.URLParam(r, "donationID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// editDonationHandler replaces the payer and payment blocks of a donation.
// The edit is a no-op when nothing changes; otherwise the prior state is
// snapshotted for revert.
func editDonationHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Payer   model.Payer   `json:"payer"`
			Payment model.Payment `json:"payment"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		d, err := st.GetDonation(r.Context(), chi.URLParam(r, "donationID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if d.Flags.Sent {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "donation already sent"})
			return
		}

		updated := combine.ApplyEdit(*d, req.Payer, req.Payment)
		if err := st.UpdateDonation(r.Context(), updated); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func revertDonationHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := st.GetDonation(r.Context(), chi.URLParam(r, "donationID"))
		if err != nil {
			writeError(w, err)
			return
		}

		reverted, ok := combine.Revert(*d)
		if !ok {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "nothing to revert"})
			return
		}
		if err := st.UpdateDonation(r.Context(), reverted); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reverted)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	zap.L().Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
