package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/jadwal/internal/ingest"
	"github.com/fortuna/jadwal/internal/reconciliation"
	"github.com/fortuna/jadwal/internal/schedule"
	"github.com/fortuna/jadwal/internal/store"
	"github.com/fortuna/jadwal/internal/store/repository"
)

// RunStore holds the most recent run in memory
type RunStore interface {
	Latest() *ingest.RunReport
}

// Trigger starts a run on demand
type Trigger interface {
	TriggerRun(ctx context.Context) (*ingest.RunReport, error)
}

// History reads stored runs
type History interface {
	List(ctx context.Context, limit int) ([]*store.ScheduleRun, error)
	GetByID(ctx context.Context, runID string) (*store.ScheduleRun, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the handler's collaborators; only Runs is required
type Deps struct {
	Runs    RunStore
	Trigger Trigger
	History History
	Checks  map[string]HealthChecker
	Version string
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	deps Deps
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	checks := map[string]string{}
	for name, c := range h.deps.Checks {
		if err := c.HealthCheck(r.Context()); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]interface{}{
		"status":  "healthy",
		"service": "jadwal",
		"version": h.deps.Version,
		"checks":  checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	if last := h.deps.Runs.Latest(); last != nil {
		body["last_run"] = last.FinishedAt
	}
	respondJSON(w, status, body)
}

// GetSchedule returns the canonical schedule of the latest run.
// Optional filters: date (kickoff date, YYYY-MM-DD), league, live=true.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	last, ok := h.latest(w)
	if !ok {
		return
	}
	records, err := filter(last.Schedule, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// GetEnrichedSchedule returns the logo-enriched schedule of the latest run
func (h *Handler) GetEnrichedSchedule(w http.ResponseWriter, r *http.Request) {
	last, ok := h.latest(w)
	if !ok {
		return
	}
	if last.Enriched == nil {
		respondError(w, http.StatusServiceUnavailable, "Logo directory unavailable for the latest run", errors.New(last.LogoError))
		return
	}
	records, err := filter(last.Enriched, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// GetReview returns the records held back for manual review
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	last, ok := h.latest(w)
	if !ok {
		return
	}
	review := last.Review
	if review == nil {
		review = []reconciliation.ReviewItem{}
	}
	respondJSON(w, http.StatusOK, review)
}

// GetLatestRun returns the summary of the latest run
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	last, ok := h.latest(w)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, last.Summary())
}

// ListRuns returns stored run history, newest first
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		respondError(w, http.StatusNotImplemented, "Run history is not enabled", nil)
		return
	}
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	runs, err := h.deps.History.List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs", err)
		return
	}
	respondJSON(w, http.StatusOK, runs)
}

// GetRun returns one stored run
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		respondError(w, http.StatusNotImplemented, "Run history is not enabled", nil)
		return
	}
	run, err := h.deps.History.GetByID(r.Context(), mux.Vars(r)["runID"])
	if errors.Is(err, repository.ErrRunNotFound) {
		respondError(w, http.StatusNotFound, "Run not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run", err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// TriggerRun runs the pipeline now and returns its summary. The run outlives
// the request: a client hanging up does not cancel it.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.Trigger == nil {
		respondError(w, http.StatusNotImplemented, "Manual runs are not enabled", nil)
		return
	}
	report, err := h.deps.Trigger.TriggerRun(context.WithoutCancel(r.Context()))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Run failed", err)
		return
	}
	respondJSON(w, http.StatusAccepted, report.Summary())
}

func (h *Handler) latest(w http.ResponseWriter) (*ingest.RunReport, bool) {
	last := h.deps.Runs.Latest()
	if last == nil {
		respondError(w, http.StatusServiceUnavailable, "No run has completed yet", nil)
		return nil, false
	}
	return last, true
}

func filter(records []schedule.MatchRecord, r *http.Request) ([]schedule.MatchRecord, error) {
	q := r.URL.Query()
	date := q.Get("date")
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, err
		}
	}
	league := strings.TrimSpace(q.Get("league"))
	live := q.Get("live") == "true"

	out := make([]schedule.MatchRecord, 0, len(records))
	for _, rec := range records {
		if date != "" && rec.KickoffDate != date {
			continue
		}
		if league != "" && !strings.EqualFold(rec.League, league) {
			continue
		}
		if live && !rec.IsLive() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil && err.Error() != "" {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
