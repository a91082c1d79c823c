// Package api serves the catalog and table data over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"restables/internal/apperr"
	"restables/internal/driver"
	"restables/internal/exporter"
	"restables/internal/metrics"
	"restables/internal/service"
	"restables/internal/worker"
)

// Options configures the HTTP surface.
type Options struct {
	Env            string
	AllowedOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables it.
	RateLimitPerMinute int
	RateLimitBurst     int
	// FlushEvery is the number of lines between explicit flushes of a stream.
	FlushEvery int
	// Compress is the default for export jobs that do not choose.
	Compress   bool
	JobTimeout time.Duration
}

type Handler struct {
	svc  *service.Service
	pool *worker.Pool
	opts Options
	// open starts the cursor behind a data request.
	open func(ctx context.Context, req service.Request) (driver.RowStreamer, error)
}

// NewHandler builds the API. pool may be nil, which disables export jobs.
func NewHandler(svc *service.Service, pool *worker.Pool, opts Options) *Handler {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 15 * time.Minute
	}
	h := &Handler{svc: svc, pool: pool, opts: opts}
	h.open = func(ctx context.Context, req service.Request) (driver.RowStreamer, error) {
		stream, err := svc.Open(ctx, req)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	return h
}

// Routes returns the mux wrapped in the middleware chain.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if h.pool != nil {
		mux.HandleFunc("POST /exports", h.handleCreateExport)
		mux.HandleFunc("GET /exports/{id}", h.handleExportStatus)
	}

	mux.HandleFunc("GET /{$}", h.handleConnections)
	mux.HandleFunc("GET /{connection}", h.handleTables)
	mux.HandleFunc("GET /{connection}/{table}", h.handleDescribe)
	mux.HandleFunc("GET /{connection}/{table}/{fields}", h.handleQuery)
	mux.HandleFunc("GET /{connection}/{table}/{fields}/{opts}", h.handleQuery)

	var handler http.Handler = mux
	handler = RateLimit(h.opts.RateLimitPerMinute, h.opts.RateLimitBurst)(handler)
	handler = CORS(h.opts.AllowedOrigins, h.opts.Env)(handler)
	handler = metrics.Middleware(handler)
	return Logger(handler)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleConnections(w http.ResponseWriter, r *http.Request) {
	names, err := h.svc.Connections(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.svc.Tables(r.Context(), r.PathValue("connection"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"tables": tables})
}

func (h *Handler) handleDescribe(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.Describe(r.Context(), r.PathValue("connection"), r.PathValue("table"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleQuery streams table data. Nothing is written until the query is
// running, so validation and execution errors still get a JSON error body.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}
	req := service.Request{
		Connection: r.PathValue("connection"),
		Table:      r.PathValue("table"),
		Fields:     r.PathValue("fields"),
		Options:    r.PathValue("opts"),
	}

	stream, err := h.open(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	rec := metrics.NewRecorder(w)
	rec.Header().Set("Content-Type", format.ContentType())
	if format != exporter.FormatCSV {
		rec.Header().Set("Content-Disposition", `attachment; filename="`+req.Table+format.Extension()+`"`)
	}

	var rows int64
	if format == exporter.FormatCSV {
		var lines *exporter.LineStream
		lines, err = exporter.NewLineStream(stream)
		if err == nil {
			rows, err = lines.StreamTo(rec, h.opts.FlushEvery)
		}
	} else {
		flushEvery := 0
		if format.Streaming() {
			flushEvery = h.opts.FlushEvery
		}
		var enc exporter.RowEncoder
		enc, err = exporter.NewEncoder(format, rec)
		if err == nil {
			var res *exporter.ExportResult
			res, err = exporter.StreamRows(r.Context(), stream, enc, flushEvery)
			if res != nil {
				rows = res.RowsProcessed
			}
		}
	}
	metrics.RowsStreamed.WithLabelValues(req.Connection, string(format)).Add(float64(rows))

	if err == nil {
		return
	}
	if !rec.Written() {
		rec.Header().Del("Content-Disposition")
		writeError(rec, err)
		return
	}
	if errors.Is(err, context.Canceled) || r.Context().Err() != nil {
		slog.Info("Client disconnected mid-stream", "connection", req.Connection, "table", req.Table, "rows", rows)
		return
	}
	slog.Error("Stream failed after response started",
		"connection", req.Connection,
		"table", req.Table,
		"rows", rows,
		"error", err,
	)
	// Abort the connection so the client cannot mistake the body for a complete result.
	panic(http.ErrAbortHandler)
}

type exportRequest struct {
	Connection string `json:"connection"`
	Table      string `json:"table"`
	Fields     string `json:"fields"`
	Options    string `json:"options"`
	Format     string `json:"format"`
	Compress   *bool  `json:"compress"`
}

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	var body exportRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: http.StatusBadRequest, Message: "invalid request body"})
		return
	}
	if body.Fields == "" {
		body.Fields = "*"
	}
	format, err := exporter.ParseFormat(body.Format)
	if err != nil {
		writeError(w, err)
		return
	}

	prepared, err := h.svc.Prepare(r.Context(), service.Request{
		Connection: body.Connection,
		Table:      body.Table,
		Fields:     body.Fields,
		Options:    body.Options,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	compress := h.opts.Compress
	if body.Compress != nil {
		compress = *body.Compress
	}
	spec := worker.Spec{Connection: body.Connection, Table: body.Table, Format: format, Compress: compress}
	open := func(ctx context.Context) (driver.RowStreamer, error) {
		stream, err := prepared.Execute(ctx)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}

	job := worker.NewExportJob(spec, open, h.opts.JobTimeout)
	if err := h.pool.Submit(job); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: http.StatusServiceUnavailable, Message: err.Error()})
		return
	}

	w.Header().Set("Location", "/exports/"+job.ID)
	writeJSON(w, http.StatusAccepted, job.Snapshot())
}

func (h *Handler) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.pool.Status(r.PathValue("id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Code: http.StatusNotFound, Message: "export not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// writeError maps a core error onto its status and a JSON body. Server-side
// failures are logged and not described to the client.
func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Code: status, Message: apperr.Message(err)})
}
