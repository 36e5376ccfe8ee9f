package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pattern-detector/analytics"
	"pattern-detector/models"
	"pattern-detector/wire"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Limits are the caps applied to every request before it reaches the
// numeric core.
type Limits struct {
	MaxBodyBytes  int64
	MaxPoints     int
	MaxLagBuckets int
	HeatmapTarget int
}

type AnalysisHandler struct {
	store  analytics.ResultStore
	engine *analytics.Engine
	logger *zap.Logger
	limits Limits
}

func NewAnalysisHandler(store analytics.ResultStore, engine *analytics.Engine, logger *zap.Logger, limits Limits) *AnalysisHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = 32 << 20
	}
	return &AnalysisHandler{
		store:  store,
		engine: engine,
		logger: logger,
		limits: limits,
	}
}

// RecordCompletion is the engine callback for finished background jobs.
func RecordCompletion(kind models.AnalysisKind, status string) {
	analysesCompletedTotal.WithLabelValues(string(kind), status).Inc()
}

// Register mounts all routes on r.
func (h *AnalysisHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", instrument("health", HealthCheck)).Methods("GET")
	r.HandleFunc("/v1/frames/decode", instrument("frames_decode", h.HandleDecode)).Methods("POST")
	r.HandleFunc("/v1/analysis/{kind}", instrument("analysis", h.HandleAnalysis)).Methods("POST")
	r.HandleFunc("/v1/analysis/{id}", instrument("analysis_result", h.HandleResult)).Methods("GET")
	r.HandleFunc("/v1/candidates/normalize", instrument("candidates_normalize", h.HandleNormalize)).Methods("POST")
	r.HandleFunc("/v1/candidates/diagnose", instrument("candidates_diagnose", h.HandleDiagnose)).Methods("POST")
	r.HandleFunc("/v1/candidates/stable", instrument("candidates_stable", h.HandleStable)).Methods("POST")
}

type seriesSummary struct {
	SensorID        string  `json:"sensor_id"`
	SensorName      *string `json:"sensor_name"`
	BaseTimestampMs float64 `json:"base_timestamp_ms"`
	Points          int     `json:"points"`
	Gaps            int     `json:"gaps"`
	FirstTimestamp  *int64  `json:"first_ts,omitempty"`
	LastTimestamp   *int64  `json:"last_ts,omitempty"`
}

// HandleDecode decodes a frame and returns the series, or only per-series
// summaries with ?summary=true.
func (h *AnalysisHandler) HandleDecode(w http.ResponseWriter, r *http.Request) {
	series, ok := h.readFrame(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("summary") != "true" {
		writeJSON(w, http.StatusOK, series)
		return
	}

	out := make([]seriesSummary, len(series))
	for i, s := range series {
		sum := seriesSummary{
			SensorID:        s.SensorID,
			SensorName:      s.SensorName,
			BaseTimestampMs: s.BaseTimestampMs,
			Points:          len(s.Points),
		}
		for _, p := range s.Points {
			if !p.Present() {
				sum.Gaps++
			}
		}
		if n := len(s.Points); n > 0 {
			first, last := s.Points[0].Timestamp, s.Points[n-1].Timestamp
			sum.FirstTimestamp, sum.LastTimestamp = &first, &last
		}
		out[i] = sum
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAnalysis runs one analysis over the posted frame. With ?async=true
// the job is queued and its id returned with 202.
func (h *AnalysisHandler) HandleAnalysis(w http.ResponseWriter, r *http.Request) {
	kind := models.AnalysisKind(mux.Vars(r)["kind"])

	req, err := parseAnalysisRequest(kind, r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.applyLimits(&req)
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, ok := h.readFrame(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("async") == "true" {
		h.submit(w, r, req, series)
		return
	}

	start := time.Now()
	out, err := analytics.Run(req, series)
	if err != nil {
		analysesCompletedTotal.WithLabelValues(string(kind), models.StatusFailed).Inc()
		status := http.StatusBadRequest
		if errors.Is(err, analytics.ErrSensorNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	analysesCompletedTotal.WithLabelValues(string(kind), models.StatusDone).Inc()
	if res, ok := out.(analytics.EventsResult); ok && len(res.Events) > 0 {
		changeEventsDetectedTotal.WithLabelValues(res.SensorID).Add(float64(len(res.Events)))
	}

	h.logger.Debug("analysis served",
		zap.String("kind", string(kind)),
		zap.String("sensor_id", req.SensorID),
		zap.Int("series", len(series)),
		zap.Duration("took", time.Since(start)))

	writeJSON(w, http.StatusOK, out)
}

func (h *AnalysisHandler) submit(w http.ResponseWriter, r *http.Request, req models.AnalysisRequest, series []models.Series) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "background analysis is not enabled")
		return
	}
	id, err := h.engine.Submit(r.Context(), req, series)
	switch {
	case errors.Is(err, analytics.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to submit analysis", zap.String("kind", string(req.Kind)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to submit analysis")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": models.StatusPending,
		"id":     id,
	})
}

// HandleResult returns a stored background result.
func (h *AnalysisHandler) HandleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	result, err := h.store.GetAnalysis(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get analysis", zap.String("job_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get analysis")
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *AnalysisHandler) readFrame(w http.ResponseWriter, r *http.Request) ([]models.Series, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.limits.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "frame too large")
			return nil, false
		}
		writeError(w, http.StatusBadRequest, "failed to read body")
		return nil, false
	}

	series, err := wire.Open(body)
	if err != nil {
		h.logger.Debug("rejected frame", zap.Int("bytes", len(body)), zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid frame: "+err.Error())
		return nil, false
	}
	return series, true
}

func (h *AnalysisHandler) applyLimits(req *models.AnalysisRequest) {
	if h.limits.MaxPoints > 0 && (req.MaxPoints == 0 || req.MaxPoints > h.limits.MaxPoints) {
		req.MaxPoints = h.limits.MaxPoints
	}
	if h.limits.MaxLagBuckets > 0 && req.MaxLagBuckets > h.limits.MaxLagBuckets {
		req.MaxLagBuckets = h.limits.MaxLagBuckets
	}
	if req.Target == 0 {
		req.Target = h.limits.HeatmapTarget
	}
}

// parseAnalysisRequest reads analysis parameters from the query string.
func parseAnalysisRequest(kind models.AnalysisKind, q url.Values) (models.AnalysisRequest, error) {
	req := models.AnalysisRequest{
		Kind:          kind,
		SensorID:      q.Get("sensor_id"),
		OtherSensorID: q.Get("other_sensor_id"),
		Polarity:      q.Get("polarity"),
		Method:        q.Get("method"),
	}

	p := queryParser{q: q}
	req.IntervalSeconds = p.intParam("interval_seconds")
	req.ZThreshold = p.floatParam("z_threshold")
	req.MinSeparation = p.intParam("min_separation")
	req.Window = p.intParam("window")
	req.ExclusionZone = p.intParam("exclusion_zone")
	req.Target = p.intParam("target")
	req.TopK = p.intParam("top_k")
	req.MaxLagBuckets = p.intParam("max_lag_buckets")
	req.PolyOrder = p.intParam("poly_order")
	req.DerivOrder = p.intParam("deriv_order")
	req.Delta = p.floatParam("delta")
	req.Degree = p.intParam("degree")
	req.TimeSlope = p.boolParam("time_slope")
	req.ToleranceBuckets = p.intParam("tolerance_buckets")
	req.MinSensors = p.intParam("min_sensors")
	req.MaxResults = p.intParam("max_results")
	req.MaxPoints = p.intParam("max_points")
	if q.Has("center") {
		c := p.floatParam("center")
		req.Center = &c
	}

	return req, p.err
}

// queryParser keeps the first conversion error.
type queryParser struct {
	q   url.Values
	err error
}

func (p *queryParser) raw(key string) (string, bool) {
	v := p.q.Get(key)
	return v, v != "" && p.err == nil
}

func (p *queryParser) intParam(key string) int {
	v, ok := p.raw(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.err = fmt.Errorf("%s must be an integer", key)
	}
	return n
}

func (p *queryParser) floatParam(key string) float64 {
	v, ok := p.raw(key)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.err = fmt.Errorf("%s must be a number", key)
	}
	return f
}

func (p *queryParser) boolParam(key string) bool {
	v, ok := p.raw(key)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.err = fmt.Errorf("%s must be true or false", key)
	}
	return b
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
