package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appsession "github.com/bryanwahyu/agroscan/internal/application/session"
	"github.com/bryanwahyu/agroscan/internal/domain/audit"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	domain "github.com/bryanwahyu/agroscan/internal/domain/session"
	"github.com/bryanwahyu/agroscan/internal/middleware"
)

// multipart field carrying the selected files
const uploadField = "files"

var errAuditDisabled = errors.New("audit log disabled")

// Options wires the router's collaborators. Everything but Sessions is
// optional. Store gates /ready; Checkers and Gauges feed /health.
type Options struct {
	Sessions       *appsession.Service
	Audit          audit.Repository
	Metrics        *middleware.Metrics
	Limiter        *middleware.RateLimiter
	Store          middleware.HealthChecker
	Checkers       map[string]middleware.HealthChecker
	Gauges         map[string]middleware.Gauge
	Logger         *zap.Logger
	APIKeys        map[string]string
	CORSOrigins    []string
	MaxUploadBytes int64
}

type Router struct {
	sessions  *appsession.Service
	audit     audit.Repository
	maxUpload int64
	log       *zap.Logger
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = middleware.NewMetrics()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 64 << 20
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	r := &Router{sessions: opts.Sessions, audit: opts.Audit, maxUpload: opts.MaxUploadBytes, log: opts.Logger}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(opts.Logger))
	mux.Use(opts.Metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.Limiter != nil {
		mux.Use(opts.Limiter.Middleware)
	}

	gauges := map[string]middleware.Gauge{
		"sessions_open":    opts.Sessions.Len,
		"analyses_running": func() int { return int(opts.Metrics.AnalysesRunning.Load()) },
	}
	for name, g := range opts.Gauges {
		gauges[name] = g
	}
	mux.Get("/health", middleware.HealthHandler(opts.Checkers, gauges))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Store))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", opts.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/sessions", r.wrap(r.handleOpen))
		rt.Get("/audit", r.wrap(r.handleAudit))

		rt.Route("/sessions/{sid}", func(rt chi.Router) {
			rt.Get("/", r.wrap(r.handleSnapshot))
			rt.Delete("/", r.wrap(r.handleClose))

			rt.Post("/images", r.wrap(r.handleSelect))
			rt.Delete("/images/{index}", r.wrap(r.handleRemove))
			rt.Get("/images/{index}/preview", r.wrap(r.handlePreview))

			rt.Post("/analyze", r.wrap(r.handleSubmit))
			rt.Get("/results", r.wrap(r.handleResults))

			rt.Get("/history", r.wrap(r.handleHistory))
			rt.Post("/history/{id}/view", r.wrap(r.handleSelectHistory))
			rt.Delete("/history/{id}", r.wrap(r.handleDeleteHistory))

			rt.Get("/refs/*", r.wrap(r.handleRef))
			rt.Put("/view", r.wrap(r.handleView))
			rt.Get("/stats", r.wrap(r.handleStats))
			rt.Get("/notifications", r.wrap(r.handleNotifications))
		})
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks malformed client input.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }
func (e badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error { return badRequestError{err: err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var (
			bad     badRequestError
			tooBig  *http.MaxBytesError
			code    int
			message = err.Error()
		)
		switch {
		case errors.As(err, &tooBig):
			code = http.StatusRequestEntityTooLarge
		case errors.As(err, &bad), errors.Is(err, domain.ErrInvalidView):
			code = http.StatusBadRequest
		case errors.Is(err, domain.ErrSessionNotFound),
			errors.Is(err, domain.ErrSessionClosed),
			errors.Is(err, domain.ErrRecordNotFound),
			errors.Is(err, domain.ErrImageNotFound),
			errors.Is(err, diagnosis.ErrBlobNotFound),
			errors.Is(err, errAuditDisabled):
			code = http.StatusNotFound
		case errors.Is(err, domain.ErrNoInputSelected):
			code = http.StatusUnprocessableEntity
		case errors.Is(err, domain.ErrAnalysisInFlight):
			code = http.StatusConflict
		default:
			code = http.StatusInternalServerError
			r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
		}
		http.Error(w, message, code)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(v)
}

func (r *Router) session(req *http.Request) (*appsession.Controller, error) {
	sid := chi.URLParam(req, "sid")
	if err := middleware.ValidateSessionID(sid); err != nil {
		return nil, badRequest(err)
	}
	return r.sessions.Get(sid)
}

func recordID(req *http.Request) (diagnosis.RecordID, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateRecordID(id); err != nil {
		return "", badRequest(err)
	}
	return diagnosis.RecordID(id), nil
}

// POST /v1/sessions
func (r *Router) handleOpen(w http.ResponseWriter, req *http.Request) error {
	ctl := r.sessions.Open()
	return writeJSON(w, http.StatusCreated, ctl.Snapshot())
}

// GET /v1/sessions/{sid}
func (r *Router) handleSnapshot(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctl.Snapshot())
}

// DELETE /v1/sessions/{sid}
func (r *Router) handleClose(w http.ResponseWriter, req *http.Request) error {
	sid := chi.URLParam(req, "sid")
	if err := middleware.ValidateSessionID(sid); err != nil {
		return badRequest(err)
	}
	if err := r.sessions.Close(req.Context(), sid); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/sessions/{sid}/images (multipart, field "files", repeatable)
func (r *Router) handleSelect(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUpload)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return badRequest(fmt.Errorf("parse upload: %w", err))
	}
	defer req.MultipartForm.RemoveAll()

	headers := req.MultipartForm.File[uploadField]
	files := make([]diagnosis.Image, 0, len(headers))
	for _, fh := range headers {
		img, err := readUpload(fh)
		if err != nil {
			return badRequest(err)
		}
		files = append(files, img)
	}

	accepted, err := ctl.SelectImages(req.Context(), files)
	if err != nil {
		return err
	}
	snap := ctl.Snapshot()
	return writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
		"dropped":  len(files) - accepted,
		"stage":    snap.Stage,
		"pending":  snap.Pending,
	})
}

func readUpload(fh *multipart.FileHeader) (diagnosis.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return diagnosis.Image{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return diagnosis.Image{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return diagnosis.Image{Name: middleware.SanitizeFileName(fh.Filename), ContentType: ct, Data: data}, nil
}

// DELETE /v1/sessions/{sid}/images/{index}
func (r *Router) handleRemove(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	idx, err := middleware.ValidateIndex(chi.URLParam(req, "index"))
	if err != nil {
		return badRequest(err)
	}
	removed := ctl.RemoveImage(req.Context(), idx)
	snap := ctl.Snapshot()
	return writeJSON(w, http.StatusOK, map[string]any{
		"removed": removed,
		"stage":   snap.Stage,
		"pending": snap.Pending,
	})
}

// GET /v1/sessions/{sid}/images/{index}/preview
func (r *Router) handlePreview(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	idx, err := middleware.ValidateIndex(chi.URLParam(req, "index"))
	if err != nil {
		return badRequest(err)
	}
	img, blob, err := ctl.Preview(req.Context(), idx)
	if err != nil {
		return err
	}
	if img.Width > 0 {
		w.Header().Set("X-Image-Width", strconv.Itoa(img.Width))
		w.Header().Set("X-Image-Height", strconv.Itoa(img.Height))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.Name))
	return writeBlob(w, blob)
}

func writeBlob(w http.ResponseWriter, blob diagnosis.Blob) error {
	ct := blob.ContentType
	if ct == "" {
		ct = http.DetectContentType(blob.Data)
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, err := w.Write(blob.Data)
	return err
}

// POST /v1/sessions/{sid}/analyze
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	if err := ctl.Submit(); err != nil {
		return err
	}
	// analysis runs in the background; poll results or notifications
	return writeJSON(w, http.StatusAccepted, ctl.Snapshot())
}

// resultResponse adds a fetchable URL to the rendered results.
type resultResponse struct {
	appsession.ResultView
	ImageURL string `json:"image_url,omitempty"`
}

func (r *Router) results(ctl *appsession.Controller) resultResponse {
	view := ctl.Results()
	resp := resultResponse{ResultView: view}
	if view.ImageRef != "" {
		resp.ImageURL = refURL(ctl.ID(), view.ImageRef)
	}
	return resp
}

// GET /v1/sessions/{sid}/results
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.results(ctl))
}

// GET /v1/sessions/{sid}/history
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctl.History(ledgerLinks{sid: ctl.ID()}))
}

// POST /v1/sessions/{sid}/history/{id}/view
func (r *Router) handleSelectHistory(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	id, err := recordID(req)
	if err != nil {
		return err
	}
	if err := ctl.SelectHistory(req.Context(), id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, r.results(ctl))
}

// DELETE /v1/sessions/{sid}/history/{id}
func (r *Router) handleDeleteHistory(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	// an id that matches nothing is a no-op, whatever its shape
	id := diagnosis.RecordID(chi.URLParam(req, "id"))
	deleted := ctl.DeleteHistory(req.Context(), id)
	return writeJSON(w, http.StatusOK, map[string]any{
		"deleted":       deleted,
		"history_count": len(ctl.Records()),
	})
}

// GET /v1/sessions/{sid}/refs/*
func (r *Router) handleRef(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	ref := chi.URLParam(req, "*")
	if err := middleware.ValidateImageRef(ref); err != nil {
		return badRequest(err)
	}
	blob, err := ctl.Blob(req.Context(), diagnosis.ImageRef(ref))
	if err != nil {
		return err
	}
	return writeBlob(w, blob)
}

// PUT /v1/sessions/{sid}/view  Body: {"view": "history"}
func (r *Router) handleView(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	var body struct {
		View string `json:"view"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(fmt.Errorf("decode body: %w", err))
	}
	v, err := domain.ParseView(body.View)
	if err != nil {
		return err
	}
	if err := ctl.SetView(v); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctl.Snapshot())
}

// GET /v1/sessions/{sid}/stats
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctl.Stats())
}

// GET /v1/sessions/{sid}/notifications (drains)
func (r *Router) handleNotifications(w http.ResponseWriter, req *http.Request) error {
	ctl, err := r.session(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, ctl.Notifications())
}

// GET /v1/audit?page=&page_size=
func (r *Router) handleAudit(w http.ResponseWriter, req *http.Request) error {
	if r.audit == nil {
		return errAuditDisabled
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.audit.Paginate(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// ledgerLinks renders history actions as API paths.
type ledgerLinks struct{ sid string }

func (l ledgerLinks) ViewDetails(id diagnosis.RecordID) string {
	return fmt.Sprintf("/v1/sessions/%s/history/%s/view", l.sid, url.PathEscape(string(id)))
}

func (l ledgerLinks) Delete(id diagnosis.RecordID) string {
	return fmt.Sprintf("/v1/sessions/%s/history/%s", l.sid, url.PathEscape(string(id)))
}

func (l ledgerLinks) Thumbnail(ref diagnosis.ImageRef) string {
	return refURL(l.sid, ref)
}

func refURL(sid string, ref diagnosis.ImageRef) string {
	if ref == "" {
		return ""
	}
	return fmt.Sprintf("/v1/sessions/%s/refs/%s", sid, ref)
}
