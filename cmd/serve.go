package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/ingest"
	"github.com/finsight/reportminer/internal/jobs"
	"github.com/finsight/reportminer/internal/model"
	"github.com/finsight/reportminer/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report extraction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env),
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

func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/reports", func(w http.ResponseWriter, req *http.Request) {
		doc, err := ingest.DecodeDocument(req.Body, req.URL.Query().Get("file_name"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		report, err := env.Processor.Submit(req.Context(), doc)
		if err != nil {
			if report != nil {
				// Report was created but could not be queued.
				writeError(w, http.StatusServiceUnavailable, "processing queue full")
				return
			}
			zap.L().Error("submit report", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to create report")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{
			"report_id":   report.ID,
			"status":      report.Status,
			"file_name":   report.FileName,
			"uploaded_at": report.CreatedAt,
		})
	})

	r.Get("/api/reports/{id}", func(w http.ResponseWriter, req *http.Request) {
		report, err := env.Store.GetReport(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "report not found")
				return
			}
			zap.L().Error("get report", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load report")
			return
		}

		resp := map[string]any{
			"report_id": report.ID,
			"file_name": report.FileName,
			"status":    report.Status,
			"message":   report.Message,
			"keywords":  map[string]jobs.Keyword{},
		}
		if report.Status == model.StatusCompleted {
			resp["keywords"] = jobs.BuildKeywords(report.Result)
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Get("/api/reports", func(w http.ResponseWriter, req *http.Request) {
		filter := store.Filter{
			Status:   model.ReportStatus(req.URL.Query().Get("status")),
			FileName: req.URL.Query().Get("file_name"),
		}
		reports, err := env.Store.ListReports(req.Context(), filter)
		if err != nil {
			zap.L().Error("list reports", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list reports")
			return
		}

		type item struct {
			ReportID  string             `json:"report_id"`
			FileName  string             `json:"file_name"`
			Status    model.ReportStatus `json:"status"`
			CreatedAt time.Time          `json:"created_at"`
			UpdatedAt time.Time          `json:"updated_at"`
		}
		items := make([]item, 0, len(reports))
		for _, r := range reports {
			items = append(items, item{
				ReportID:  r.ID,
				FileName:  r.FileName,
				Status:    r.Status,
				CreatedAt: r.CreatedAt,
				UpdatedAt: r.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": items})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
