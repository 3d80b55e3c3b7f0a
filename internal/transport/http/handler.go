// Package http serves the DataPuur operations over REST under /api/datapuur.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/orchestration"
	"github.com/nucleus/datapuur/internal/service"
	"github.com/nucleus/datapuur/internal/uploads"
)

// PathPrefix is the root of every DataPuur route.
const PathPrefix = "/api/datapuur"

// maxUploadMemory is the multipart size held in memory; larger parts spill to disk.
const maxUploadMemory = 32 << 20

// Options configures the handler.
type Options struct {
	Auth   auth.Options
	Logger *slog.Logger
}

// Handler returns the router for svc.
func Handler(svc *service.Service, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	server := &server{svc: svc, logger: logger}

	router := mux.NewRouter()
	router.Use(server.logRequests)
	router.HandleFunc("/health", server.getHealth).Methods("GET").Name("GetHealth")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("GetMetrics")

	api := router.PathPrefix(PathPrefix).Subrouter()
	api.Use(auth.Middleware(opts.Auth))

	// sources
	api.HandleFunc("/upload", server.postUpload).Methods("POST").Name("PostUpload")
	api.HandleFunc("/schema/{id}", server.getSchema).Methods("GET").Name("GetSchema")
	api.HandleFunc("/test-connection", server.postTestConnection).Methods("POST").Name("PostTestConnection")
	api.HandleFunc("/db-schema", server.postDBSchema).Methods("POST").Name("PostDBSchema")
	api.HandleFunc("/file-history", server.getFileHistory).Methods("GET").Name("GetFileHistory")

	// jobs
	api.HandleFunc("/ingest-file", server.postIngestFile).Methods("POST").Name("PostIngestFile")
	api.HandleFunc("/ingest-db", server.postIngestDB).Methods("POST").Name("PostIngestDB")
	api.HandleFunc("/job-status/{id}", server.getJobStatus).Methods("GET").Name("GetJobStatus")
	api.HandleFunc("/cancel-job/{id}", server.postCancelJob).Methods("POST").Name("PostCancelJob")
	api.HandleFunc("/jobs", server.getJobs).Methods("GET").Name("GetJobs")

	// artifacts
	api.HandleFunc("/preview/{id}", server.getPreview).Methods("GET").Name("GetPreview")
	api.HandleFunc("/artifact-schema/{id}", server.getArtifactSchema).Methods("GET").Name("GetArtifactSchema")
	api.HandleFunc("/statistics/{id}", server.getStatistics).Methods("GET").Name("GetStatistics")
	api.HandleFunc("/export/{id}", server.getExport).Methods("GET").Name("GetExport")

	// dashboard
	api.HandleFunc("/sources", server.getSources).Methods("GET").Name("GetSources")
	api.HandleFunc("/data-metrics", server.getDataMetrics).Methods("GET").Name("GetDataMetrics")
	api.HandleFunc("/activities", server.getActivities).Methods("GET").Name("GetActivities")
	api.HandleFunc("/dashboard", server.getDashboard).Methods("GET").Name("GetDashboard")

	return router
}

type server struct {
	svc    *service.Service
	logger *slog.Logger
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

// GET /health
func (s *server) getHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// POST /upload
func (s *server) postUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		s.writeError(w, core.ValidationError("invalid multipart body: %v", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, core.ValidationError("Missing required field: file"))
		return
	}
	defer file.Close()

	chunkSize, err := intParam(r.FormValue("chunkSize"), "chunkSize")
	if err != nil {
		s.writeError(w, err)
		return
	}
	src, err := s.svc.UploadSource(r.Context(), header.Filename, file, chunkSize)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, uploadResponse{FileID: src.ID, Message: "File uploaded successfully", Source: src})
}

type uploadResponse struct {
	FileID  string               `json:"file_id"`
	Message string               `json:"message"`
	Source  *core.UploadedSource `json:"source"`
}

// GET /schema/{id}
func (s *server) getSchema(w http.ResponseWriter, r *http.Request) {
	sample, err := intParam(r.URL.Query().Get("sample_size"), "sample_size")
	if err != nil {
		s.writeError(w, err)
		return
	}
	schema, err := s.svc.InferSchema(r.Context(), mux.Vars(r)["id"], sample)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

// ConnectionRequest carries database connection parameters. Config keys
// override top-level ones.
type ConnectionRequest struct {
	Type           string         `json:"type"`
	Config         map[string]any `json:"config"`
	ChunkSize      int            `json:"chunk_size"`
	ConnectionName string         `json:"connection_name"`
}

// Params flattens the request into connector parameters.
func (c ConnectionRequest) Params() map[string]any {
	out := make(map[string]any, len(c.Config)+1)
	if c.Type != "" {
		out["type"] = c.Type
	}
	for k, v := range c.Config {
		out[k] = v
	}
	return out
}

// POST /test-connection
func (s *server) postTestConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.svc.TestConnection(r.Context(), req.Params())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": res.Message,
		"version": res.Version,
	})
}

// POST /db-schema
func (s *server) postDBSchema(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	schema, err := s.svc.InferDatabaseSchema(r.Context(), req.Params())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

// GET /file-history
func (s *server) getFileHistory(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := uploads.ListFilter{Type: q.Get("type"), Search: q.Get("search"), UploadedBy: q.Get("uploaded_by")}
	out, err := s.svc.ListSources(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// IngestFileRequest starts ingestion of an uploaded file.
type IngestFileRequest struct {
	FileID    string `json:"file_id"`
	FileName  string `json:"file_name"`
	ChunkSize int    `json:"chunk_size"`
}

// POST /ingest-file
func (s *server) postIngestFile(w http.ResponseWriter, r *http.Request) {
	var req IngestFileRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.svc.StartFileIngestion(r.Context(), req.FileID, req.ChunkSize, req.FileName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobStarted(job))
}

// POST /ingest-db
func (s *server) postIngestDB(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	job, err := s.svc.StartDatabaseIngestion(r.Context(), req.Params(), req.ChunkSize, req.ConnectionName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobStarted(job))
}

func jobStarted(job *core.Job) map[string]any {
	return map[string]any{"job_id": job.ID, "message": "Ingestion job started", "status": job.Status}
}

// JobResponse is a job with its rendered duration.
type JobResponse struct {
	*core.Job
	Duration string `json:"duration,omitempty"`
}

func jobResponse(job *core.Job) JobResponse {
	return JobResponse{Job: job, Duration: job.DurationString()}
}

// GET /job-status/{id}
func (s *server) getJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJobStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, jobResponse(job))
}

// POST /cancel-job/{id}
func (s *server) postCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.CancelJob(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Job cancelled successfully",
		"job":     jobResponse(job),
	})
}

// GET /jobs
func (s *server) getJobs(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	filter := orchestration.ListFilter{
		Status:    core.JobStatus(q.Get("status")),
		Kind:      core.SourceKind(q.Get("type")),
		Search:    q.Get("search"),
		CreatedBy: q.Get("created_by"),
	}
	jobs, err := s.svc.ListJobs(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items := make([]JobResponse, 0, len(jobs.Items))
	for _, job := range jobs.Items {
		items = append(items, jobResponse(job))
	}
	s.writeJSON(w, http.StatusOK, core.Page[JobResponse]{
		Items:      items,
		Total:      jobs.Total,
		Page:       jobs.Page,
		Limit:      jobs.Limit,
		TotalPages: jobs.TotalPages,
	})
}

// GET /preview/{id}
func (s *server) getPreview(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		s.writeError(w, err)
		return
	}
	preview, err := s.svc.PreviewArtifact(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, preview)
}

// GET /artifact-schema/{id}
func (s *server) getArtifactSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.svc.ArtifactSchema(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, schema)
}

// GET /statistics/{id}
func (s *server) getStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.ArtifactStatistics(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// GET /export/{id}
func (s *server) getExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	out, err := s.svc.ExportArtifact(r.Context(), mux.Vars(r)["id"], format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer func() {
		if err := out.Cleanup(); err != nil {
			s.logger.Warn("failed to remove export file", "path", out.Path, "error", err)
		}
	}()

	f, err := os.Open(out.Path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+out.FileName+`"`)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Warn("export transfer interrupted", "job_id", mux.Vars(r)["id"], "error", err)
	}
}

// GET /sources
func (s *server) getSources(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DataSources(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /data-metrics
func (s *server) getDataMetrics(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.DataMetrics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /activities
func (s *server) getActivities(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Activities(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /dashboard
func (s *server) getDashboard(w http.ResponseWriter, r *http.Request) {
	out, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, core.ValidationError("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Code: core.CodeOf(err)})
}

// StatusOf maps an error code to an HTTP status.
func StatusOf(err error) int {
	switch core.CodeOf(err) {
	case core.CodeValidation, core.CodeUnsupportedSource:
		return http.StatusBadRequest
	case core.CodeForbidden:
		return http.StatusForbidden
	case core.CodeNotFound:
		return http.StatusNotFound
	case core.CodeInvalidState:
		return http.StatusConflict
	case core.CodeSchema:
		return http.StatusUnprocessableEntity
	case core.CodeConnection:
		return http.StatusBadGateway
	case core.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.ValidationError("%s must be an integer, got %q", name, raw)
	}
	return v, nil
}

func pageParams(r *http.Request) (core.PageRequest, error) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), "page")
	if err != nil {
		return core.PageRequest{}, err
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return core.PageRequest{}, err
	}
	return core.PageRequest{Page: page, Limit: limit}, nil
}
