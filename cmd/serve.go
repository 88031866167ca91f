package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/cdr-insight/internal/graph"
	"github.com/sells-group/cdr-insight/internal/pipeline"
	"github.com/sells-group/cdr-insight/internal/store"
)

var servePort int

// maxUploadBytes bounds one multipart ingestion request.
const maxUploadBytes = 256 << 20

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for uploads and graph analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := http.NewServeMux()

		mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		mux.HandleFunc("POST /uploads", func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				http.Error(w, `{"error":"invalid multipart request"}`, http.StatusBadRequest)
				return
			}

			var files []pipeline.File
			for _, headers := range r.MultipartForm.File {
				for _, fh := range headers {
					f, err := fh.Open()
					if err != nil {
						http.Error(w, `{"error":"unreadable file part"}`, http.StatusBadRequest)
						return
					}
					data, err := io.ReadAll(f)
					f.Close()
					if err != nil {
						http.Error(w, `{"error":"unreadable file part"}`, http.StatusBadRequest)
						return
					}
					files = append(files, pipeline.File{Name: fh.Filename, Data: data})
				}
			}
			if len(files) == 0 {
				http.Error(w, `{"error":"no files in request"}`, http.StatusBadRequest)
				return
			}

			uploadID := uuid.New().String()
			summary, err := env.Pipeline.Run(r.Context(), uploadID, r.FormValue("label"), files)
			if err != nil {
				zap.L().Error("upload ingestion failed",
					zap.String("upload_id", uploadID),
					zap.Error(err),
				)
				if summary == nil {
					http.Error(w, `{"error":"ingestion failed"}`, http.StatusInternalServerError)
					return
				}
			}
			writeJSON(w, http.StatusCreated, summary)
		})

		mux.HandleFunc("GET /uploads", func(w http.ResponseWriter, r *http.Request) {
			limit := 50
			if s := r.URL.Query().Get("limit"); s != "" {
				if n, err := strconv.Atoi(s); err == nil && n > 0 {
					limit = n
				}
			}
			uploads, err := env.Store.ListUploads(r.Context(), limit)
			if err != nil {
				http.Error(w, `{"error":"list uploads failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, uploads)
		})

		mux.HandleFunc("GET /uploads/{id}", func(w http.ResponseWriter, r *http.Request) {
			upload, err := env.Store.GetUpload(r.Context(), r.PathValue("id"))
			if err != nil {
				http.Error(w, `{"error":"upload not found"}`, http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, upload)
		})

		mux.HandleFunc("GET /uploads/{id}/summary", func(w http.ResponseWriter, r *http.Request) {
			filter, err := queryFilter(r)
			if err != nil {
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
				return
			}
			summary, err := env.Store.EventSummary(r.Context(), filter)
			if err != nil {
				http.Error(w, `{"error":"summary failed"}`, http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		})

		mux.HandleFunc("GET /uploads/{id}/graph", func(w http.ResponseWriter, r *http.Request) {
			filter, err := queryFilter(r)
			if err != nil {
				http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
				return
			}

			nodes, err := env.Store.NodeAggregates(r.Context(), filter)
			if err != nil {
				http.Error(w, `{"error":"aggregation failed"}`, http.StatusInternalServerError)
				return
			}
			edges, err := env.Store.EdgeAggregates(r.Context(), filter)
			if err != nil {
				http.Error(w, `{"error":"aggregation failed"}`, http.StatusInternalServerError)
				return
			}

			params := graph.Params{
				MinEdgeWeight: filter.MinWeight,
				Resolution:    cfg.Graph.Resolution,
				MaxNodes:      cfg.Graph.MaxNodes,
			}
			if s := r.URL.Query().Get("node_limit"); s != "" {
				params.NodeLimit, _ = strconv.Atoi(s)
			}
			if s := r.URL.Query().Get("edge_limit"); s != "" {
				params.EdgeLimit, _ = strconv.Atoi(s)
			}

			writeJSON(w, http.StatusOK, graph.Analyze(nodes, edges, params))
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go shutdownOnSignal(ctx, srv)

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdownOnSignal blocks until ctx is canceled, then drains the server under
// a fresh timeout. The signal context is already canceled at that point, so
// passing it to Shutdown would abort in-flight uploads instead of draining.
func shutdownOnSignal(ctx context.Context, srv *http.Server) {
	<-ctx.Done()
	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

// queryFilter builds an event filter from the path upload ID and query
// parameters.
func queryFilter(r *http.Request) (store.EventFilter, error) {
	q := r.URL.Query()
	minWeight := 0.0
	if s := q.Get("min_weight"); s != "" {
		w, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return store.EventFilter{}, eris.New("invalid min_weight")
		}
		minWeight = w
	}
	f, err := eventFilter(r.PathValue("id"), q.Get("from"), q.Get("to"), q.Get("type"), q.Get("direction"), minWeight)
	if err != nil {
		return f, eris.New("invalid date filter")
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
