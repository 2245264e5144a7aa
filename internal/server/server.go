// Package server exposes vote analysis over HTTP: upload a vote table, get
// the result workbook back.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tre1322/best-of-analyzer/internal/analysis"
	"github.com/tre1322/best-of-analyzer/internal/ballot"
	"github.com/tre1322/best-of-analyzer/internal/fetcher"
	"github.com/tre1322/best-of-analyzer/internal/report"
	"github.com/tre1322/best-of-analyzer/internal/store"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxNameRunes    = 50
)

// RunRecorder saves run summaries. Optional.
type RunRecorder interface {
	SaveRun(ctx context.Context, run store.RunSummary) error
}

// Options configures a Server.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	// AddressColumn is left out of category listings.
	AddressColumn string
	Runs          RunRecorder
}

// Server serves the upload endpoints.
type Server struct {
	analyzer *analysis.Analyzer
	opts     Options
}

// New creates a Server that analyzes uploads with a.
func New(a *analysis.Analyzer, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.AddressColumn == "" {
		opts.AddressColumn = ballot.DefaultAddressColumn
	}
	return &Server{analyzer: a, opts: opts}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/categories", s.handleCategories)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	zap.L().Info("starting server", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	tbl, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	category := strings.TrimSpace(r.FormValue("category"))
	if category == "" {
		writeError(w, http.StatusBadRequest, "category is required")
		return
	}

	res, err := s.analyzer.Run(r.Context(), tbl, category)
	if err != nil {
		var missing *ballot.MissingColumnError
		if errors.As(err, &missing) {
			writeError(w, http.StatusBadRequest, missing.Error())
			return
		}
		zap.L().Error("server: analysis failed", zap.String("category", category), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	if s.opts.Runs != nil {
		if err := s.opts.Runs.SaveRun(r.Context(), store.SummaryFromResult(res)); err != nil {
			zap.L().Warn("server: record run failed", zap.String("run_id", res.RunID), zap.Error(err))
		}
	}

	if r.URL.Query().Get("format") == "json" {
		var buf bytes.Buffer
		if err := report.WriteJSON(&buf, res); err != nil {
			zap.L().Error("server: encode result", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "could not encode result")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes()) //nolint:errcheck
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, res); err != nil {
		zap.L().Error("server: write workbook", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not write workbook")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ResultFilename(category)))
	w.Header().Set("X-Run-ID", res.RunID)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	err := s.parseForm(w, r)
	if err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["file"]) == 0 {
		writeJSON(w, http.StatusOK, map[string][]string{"categories": {}})
		return
	}
	tbl, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	cats := tbl.Categories(s.opts.AddressColumn)
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	return r.ParseMultipartForm(s.opts.MaxUploadBytes)
}

// readUpload parses the "file" part into a table, writing a 400 on failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*ballot.Table, bool) {
	if err := s.parseForm(w, r); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return nil, false
	}
	defer file.Close() //nolint:errcheck

	rows, err := fetcher.Read(r.Context(), header.Filename, file)
	if err != nil {
		zap.L().Debug("server: unreadable upload", zap.String("file", header.Filename), zap.Error(err))
		writeError(w, http.StatusBadRequest, "could not read spreadsheet")
		return nil, false
	}
	tbl, err := ballot.NewTable(rows)
	if err != nil {
		writeError(w, http.StatusBadRequest, "spreadsheet has no header row")
		return nil, false
	}
	return tbl, true
}

// ResultFilename names the result workbook after the first 50 characters of
// category, with spaces replaced by underscores.
func ResultFilename(category string) string {
	runes := []rune(category)
	if len(runes) > maxNameRunes {
		runes = runes[:maxNameRunes]
	}
	name := strings.NewReplacer(" ", "_", "/", "_", `\`, "_", `"`, "_").Replace(string(runes))
	return name + "_results.xlsx"
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
