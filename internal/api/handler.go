// Package api exposes the orchestrator over HTTP: workers submit matches, the
// admin dashboard reads health and fallback figures and re-enables models.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/af-corp/prediction-orchestrator/internal/health"
	"github.com/af-corp/prediction-orchestrator/internal/httputil"
	"github.com/af-corp/prediction-orchestrator/internal/router"
	"github.com/af-corp/prediction-orchestrator/internal/screen"
	"github.com/af-corp/prediction-orchestrator/internal/spend"
	"github.com/af-corp/prediction-orchestrator/internal/store"
	"github.com/af-corp/prediction-orchestrator/internal/telemetry"
	"github.com/af-corp/prediction-orchestrator/internal/types"
	"github.com/af-corp/prediction-orchestrator/internal/validate"
)

const maxBodyBytes = 64 << 10

const defaultStatsWindow = 24 * time.Hour

type Predictor interface {
	PredictAll(ctx context.Context, match types.MatchContext) map[string]types.Attempt
	Registry() *router.Registry
}

type HealthService interface {
	List(ctx context.Context) ([]health.Status, error)
	Reenable(ctx context.Context, modelID string) (health.Status, error)
}

type StatsSource interface {
	FallbackStats(ctx context.Context, since time.Time) ([]store.FallbackStat, error)
}

type SpendSource interface {
	Get(ctx context.Context, modelID string, day time.Time) (spend.Daily, error)
}

// Handler holds dependencies for the HTTP handlers.
type Handler struct {
	predictor Predictor
	health    HealthService
	stats     StatsSource
	spend     SpendSource
	screener  *screen.Screener
	metrics   *telemetry.Metrics
	now       func() time.Time
}

// Deps wires a Handler. Spend, Screener and Metrics may be nil.
type Deps struct {
	Predictor Predictor
	Health    HealthService
	Stats     StatsSource
	Spend     SpendSource
	Screener  *screen.Screener
	Metrics   *telemetry.Metrics
}

func NewHandler(d Deps) *Handler {
	return &Handler{
		predictor: d.Predictor,
		health:    d.Health,
		stats:     d.Stats,
		spend:     d.Spend,
		screener:  d.Screener,
		metrics:   d.Metrics,
		now:       time.Now,
	}
}

// PredictMatch handles POST /v1/predictions
func (h *Handler) PredictMatch(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var match types.MatchContext
	if err := json.Unmarshal(body, &match); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return
	}
	if err := validate.Match(match); err != nil {
		httputil.WriteBadRequestError(w, reqID, err.Error())
		return
	}
	if !h.screenMatch(w, reqID, match) {
		return
	}

	attempts := h.predictor.PredictAll(r.Context(), match)
	if len(attempts) == 0 {
		httputil.WriteServiceUnavailableError(w, reqID, "No active models")
		return
	}

	resp := predictResponse{MatchID: match.MatchID, RequestID: reqID}
	for _, a := range attempts {
		res := modelResult{
			ModelID:      a.ModelID,
			Success:      a.OK(),
			UsedFallback: a.UsedFallback,
			ErrorKind:    a.ErrorKind,
			Predictions:  a.Predictions,
		}
		if res.Success {
			resp.Succeeded++
		}
		resp.Results = append(resp.Results, res)
	}
	sort.Slice(resp.Results, func(i, j int) bool { return resp.Results[i].ModelID < resp.Results[j].ModelID })

	slog.Info("prediction batch served",
		"request_id", reqID,
		"match_id", match.MatchID,
		"models", len(resp.Results),
		"succeeded", resp.Succeeded,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// screenMatch runs field screening and writes the rejection itself. It reports
// whether the request may proceed.
func (h *Handler) screenMatch(w http.ResponseWriter, reqID string, match types.MatchContext) bool {
	if h.screener == nil {
		return true
	}
	res := h.screener.Check(match)
	if res.Action == screen.ActionPass {
		return true
	}

	for _, d := range res.Detections {
		if h.metrics != nil {
			h.metrics.RecordScreening(string(res.Action), d.RuleName)
		}
	}
	if res.Action == screen.ActionBlock {
		slog.Warn("match blocked by screening",
			"request_id", reqID,
			"match_id", match.MatchID,
			"detections", len(res.Detections),
			"score", res.Score,
		)
		httputil.WriteBadRequestError(w, reqID, res.Message)
		return false
	}

	slog.Info("match flagged by screening",
		"request_id", reqID,
		"match_id", match.MatchID,
		"detections", len(res.Detections),
		"score", res.Score,
	)
	return true
}

// ListModels handles GET /v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	reg := h.predictor.Registry()

	statuses := map[string]health.Status{}
	if h.health != nil {
		list, err := h.health.List(r.Context())
		if err != nil {
			// Listing still works without health data.
			slog.Warn("health list failed", "request_id", reqID, "error", err)
		}
		for _, s := range list {
			statuses[s.ModelID] = s
		}
	}

	enabled := map[string]bool{}
	for _, p := range reg.Active() {
		enabled[p.ID()] = true
	}

	var models []modelObject
	for _, id := range reg.IDs() {
		p, _ := reg.Get(id)
		m := modelObject{
			ID:          id,
			DisplayName: p.DisplayName(),
			Backend:     p.Backend(),
			Reasoning:   p.SupportsReasoningOutput(),
			Enabled:     enabled[id],
			Active:      enabled[id],
		}
		if s, ok := statuses[id]; ok {
			st := s
			m.Health = &st
			m.Active = m.Enabled && s.Active
		}
		models = append(models, m)
	}

	httputil.WriteJSON(w, http.StatusOK, modelListResponse{Object: "list", Data: models})
}

// FallbackStats handles GET /admin/v1/fallback-stats?since=24h
func (h *Handler) FallbackStats(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")

	window := defaultStatsWindow
	if v := r.URL.Query().Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			httputil.WriteBadRequestError(w, reqID, "since must be a positive duration such as 24h")
			return
		}
		window = d
	}
	since := h.now().Add(-window).Truncate(time.Minute)

	stats, err := h.stats.FallbackStats(r.Context(), since)
	if err != nil {
		slog.Error("fallback stats failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to load fallback statistics")
		return
	}
	if stats == nil {
		stats = []store.FallbackStat{}
	}

	httputil.WriteJSON(w, http.StatusOK, fallbackStatsResponse{Since: since, Data: stats})
}

// DailySpend handles GET /admin/v1/spend?day=2006-01-02
func (h *Handler) DailySpend(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	if h.spend == nil {
		httputil.WriteServiceUnavailableError(w, reqID, "Spend tracking is disabled")
		return
	}

	day := h.now().UTC()
	if v := r.URL.Query().Get("day"); v != "" {
		d, err := time.Parse(time.DateOnly, v)
		if err != nil {
			httputil.WriteBadRequestError(w, reqID, "day must be formatted as YYYY-MM-DD")
			return
		}
		day = d
	}

	resp := spendResponse{Day: day.Format(time.DateOnly)}
	for _, id := range h.predictor.Registry().IDs() {
		d, err := h.spend.Get(r.Context(), id, day)
		if err != nil {
			slog.Error("spend lookup failed", "request_id", reqID, "model_id", id, "error", err)
			httputil.WriteInternalError(w, reqID, "Failed to load spend")
			return
		}
		resp.TotalUSD += d.Total()
		resp.Data = append(resp.Data, d)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// ReenableModel handles POST /admin/v1/models/{id}/reenable
func (h *Handler) ReenableModel(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	modelID := chi.URLParam(r, "id")

	if _, ok := h.predictor.Registry().Get(modelID); !ok {
		httputil.WriteNotFoundError(w, reqID, "Unknown model: "+modelID)
		return
	}

	status, err := h.health.Reenable(r.Context(), modelID)
	if err != nil {
		if errors.Is(err, health.ErrNotFound) {
			httputil.WriteNotFoundError(w, reqID, "No health record for model: "+modelID)
			return
		}
		slog.Error("reenable failed", "request_id", reqID, "model_id", modelID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to re-enable model")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// modelResult never names the endpoint that served a fallback.
type modelResult struct {
	ModelID      string             `json:"model_id"`
	Success      bool               `json:"success"`
	UsedFallback bool               `json:"used_fallback"`
	ErrorKind    string             `json:"error_kind,omitempty"`
	Predictions  []types.Prediction `json:"predictions,omitempty"`
}

type predictResponse struct {
	MatchID   string        `json:"match_id"`
	RequestID string        `json:"request_id,omitempty"`
	Succeeded int           `json:"succeeded"`
	Results   []modelResult `json:"results"`
}

type modelObject struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Backend     string `json:"backend"`
	Reasoning   bool   `json:"reasoning"`
	// Enabled is the configured flag, Active also accounts for auto-disable.
	Enabled bool           `json:"enabled"`
	Active  bool           `json:"active"`
	Health  *health.Status `json:"health,omitempty"`
}

type modelListResponse struct {
	Object string        `json:"object"`
	Data   []modelObject `json:"data"`
}

type fallbackStatsResponse struct {
	Since time.Time            `json:"since"`
	Data  []store.FallbackStat `json:"data"`
}

type spendResponse struct {
	Day      string        `json:"day"`
	TotalUSD float64       `json:"total_usd"`
	Data     []spend.Daily `json:"data"`
}
