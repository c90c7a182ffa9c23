package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/config"
	"github.com/sells-group/beekeep/internal/ingest"
	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/monitoring"
	"github.com/sells-group/beekeep/internal/salvage"
	"github.com/sells-group/beekeep/internal/store"
)

// webhookSecretHeader carries the shared secret of voice-agent callbacks.
const webhookSecretHeader = "x-vapi-secret"

const maxBodyBytes = 4 << 20

// api serves the HTTP surface over an appEnv.
type api struct {
	env *appEnv
	srv config.ServerConfig
	mon config.MonitoringConfig
}

// buildRouter returns the HTTP handler for env.
func buildRouter(env *appEnv, srv config.ServerConfig, mon config.MonitoringConfig) http.Handler {
	a := &api{env: env, srv: srv, mon: mon}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: srv.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", webhookSecretHeader},
		MaxAge:         300,
	}))

	r.Get("/health", a.health)
	r.Handle("/metrics", promhttp.HandlerFor(env.Metrics.Registry(), promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	r.Post("/webhook/voice", a.voiceWebhook)
	r.Post("/extractions", a.postExtraction)
	r.Post("/transcripts", a.postTranscript)

	r.Route("/hives", func(r chi.Router) {
		r.Get("/", a.listHives)
		r.Post("/", a.createHive)
		r.Delete("/{id}", a.deactivateHive)
	})

	r.Get("/inspections", a.listInspections)
	r.Post("/inspections/{id}/confirm", a.confirmInspection)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", a.listSessions)
		r.Get("/{id}", a.getSession)
		r.Post("/{id}/assignments", a.assign)
	})

	r.Get("/status", a.status)

	return r
}

// requestLogger logs each request at debug level through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.env.Store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- ingestion --

func (a *api) voiceWebhook(w http.ResponseWriter, r *http.Request) {
	if a.srv.WebhookSecret == "" {
		zap.L().Error("webhook secret not configured")
		writeErrorMessage(w, http.StatusInternalServerError, "webhook secret not configured")
		return
	}
	if subtle.ConstantTimeCompare([]byte(r.Header.Get(webhookSecretHeader)), []byte(a.srv.WebhookSecret)) != 1 {
		writeErrorMessage(w, http.StatusForbidden, "invalid webhook secret")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "could not read body")
		return
	}

	out, err := a.env.Pipeline.ProcessWebhook(r.Context(), payload)
	if err != nil {
		writeError(w, out, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type extractionRequest struct {
	// Text is the raw language-model response.
	Text         string `json:"text"`
	Transcript   string `json:"transcript"`
	RecordingURL string `json:"recording_url"`
}

func (a *api) postExtraction(w http.ResponseWriter, r *http.Request) {
	var req extractionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := a.env.Pipeline.ProcessText(r.Context(), ingest.IngestRequest{
		Source:       model.SessionUpload,
		RecordingURL: req.RecordingURL,
		Transcript:   req.Transcript,
		Raw:          req.Text,
	})
	if err != nil {
		writeError(w, out, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *api) postTranscript(w http.ResponseWriter, r *http.Request) {
	if a.env.Analyzer == nil {
		writeErrorMessage(w, http.StatusServiceUnavailable, "language model not configured")
		return
	}
	var req extractionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Transcript == "" {
		writeErrorMessage(w, http.StatusBadRequest, "transcript is required")
		return
	}

	raw, err := a.env.Analyzer.Extract(r.Context(), req.Transcript)
	if err != nil {
		writeError(w, nil, err)
		return
	}
	out, err := a.env.Pipeline.ProcessText(r.Context(), ingest.IngestRequest{
		Source:       model.SessionUpload,
		RecordingURL: req.RecordingURL,
		Transcript:   req.Transcript,
		Raw:          raw,
	})
	if err != nil {
		writeError(w, out, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// -- hives --

func (a *api) listHives(w http.ResponseWriter, r *http.Request) {
	hives, err := a.env.Store.ListHives(r.Context(), store.HiveFilter{
		IncludeInactive: r.URL.Query().Get("all") == "true",
		WithLatest:      r.URL.Query().Get("latest") == "true",
	})
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, hives)
}

func (a *api) createHive(w http.ResponseWriter, r *http.Request) {
	var h model.Hive
	if !decodeBody(w, r, &h) {
		return
	}
	if h.Name == "" {
		writeErrorMessage(w, http.StatusBadRequest, "name is required")
		return
	}
	h.ID = ""
	if err := a.env.Store.CreateHive(r.Context(), &h); err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (a *api) deactivateHive(w http.ResponseWriter, r *http.Request) {
	if err := a.env.Store.DeactivateHive(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, nil, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -- inspections --

func (a *api) listInspections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	recs, err := a.env.Store.ListInspections(r.Context(), store.InspectionFilter{
		HiveID:      q.Get("hive_id"),
		SessionID:   q.Get("session_id"),
		Unconfirmed: q.Get("unconfirmed") == "true",
		Limit:       limit,
	})
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *api) confirmInspection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Editor string `json:"editor"`
		Notes  string `json:"notes"`
	}
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	rec, err := a.env.Store.ConfirmInspection(r.Context(), chi.URLParam(r, "id"), req.Editor, req.Notes)
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// -- sessions --

func (a *api) listSessions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := a.env.Store.ListSessions(r.Context(), store.SessionFilter{
		WithUnresolved: r.URL.Query().Get("unresolved") == "true",
		Limit:          limit,
	})
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *api) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.env.Store.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *api) assign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Assignments []ingest.IndexAssignment `json:"assignments"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := a.env.Pipeline.AssignUnresolved(r.Context(), chi.URLParam(r, "id"), req.Assignments)
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	days := a.mon.OverdueDays
	if v, err := strconv.Atoi(r.URL.Query().Get("overdue_days")); err == nil {
		days = v
	}
	snap, err := monitoring.NewCollector(a.env.Store).Collect(r.Context(), days)
	if err != nil {
		writeError(w, nil, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// -- helpers --

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorBody is the JSON error response. Session is set when the run was
// recorded before failing, so the transcript can be re-entered by hand.
type errorBody struct {
	Error    string `json:"error"`
	Session  string `json:"session_id,omitempty"`
	Original string `json:"original,omitempty"`
	Repaired string `json:"repaired,omitempty"`
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var me *salvage.MalformedError
	switch {
	case errors.As(err, &me),
		errors.Is(err, salvage.ErrEmptyExtraction),
		errors.Is(err, ingest.ErrInvalidAssignment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrBadPayload):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrHiveNotFound),
		errors.Is(err, store.ErrInspectionNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, out *ingest.Outcome, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	if status == http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
		body.Error = "internal error"
	}
	if out != nil && out.Session != nil {
		body.Session = out.Session.ID
	}
	var me *salvage.MalformedError
	if errors.As(err, &me) {
		body.Original = me.Original
		body.Repaired = me.Repaired
	}
	writeJSON(w, status, body)
}
