package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pattern-detector/selection"
)

type normalizeRequest struct {
	Strategy   selection.Strategy      `json:"strategy"`
	FocusID    string                  `json:"focus_sensor_id"`
	Payload    json.RawMessage         `json:"payload"`
	Graph      selection.GraphSnapshot `json:"graph,omitempty"`
	MaxDepth   int                     `json:"max_depth,omitempty"`
	MaxVisited int                     `json:"max_visited,omitempty"`
}

type diagnoseRequest struct {
	FocusID     string              `json:"focus_sensor_id"`
	SensorID    string              `json:"sensor_id"`
	EligibleIDs []string            `json:"eligible_ids"`
	Job         selection.JobResult `json:"job"`
}

type stableRequest struct {
	PreviousID   string   `json:"previous_id"`
	CandidateIDs []string `json:"candidate_ids"`
}

// HandleNormalize turns one strategy payload into the ranked candidate list.
func (h *AnalysisHandler) HandleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	evidence, err := selection.DecodePayload(req.Strategy, req.FocusID, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := selection.NormalizeOptions{
		FocusID:    req.FocusID,
		MaxDepth:   req.MaxDepth,
		MaxVisited: req.MaxVisited,
	}
	if len(req.Graph) > 0 {
		opts.Graph = req.Graph
	}
	writeJSON(w, http.StatusOK, selection.Normalize(evidence, opts))
}

func (h *AnalysisHandler) HandleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.SensorID == "" {
		writeError(w, http.StatusBadRequest, "sensor_id is required")
		return
	}

	writeJSON(w, http.StatusOK, selection.Diagnose(req.FocusID, req.SensorID, req.EligibleIDs, req.Job))
}

func (h *AnalysisHandler) HandleStable(w http.ResponseWriter, r *http.Request) {
	var req stableRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	candidates := make([]selection.NormalizedCandidate, len(req.CandidateIDs))
	for i, id := range req.CandidateIDs {
		candidates[i] = selection.NormalizedCandidate{SensorID: id, Rank: i + 1}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"selected_id": selection.PickStableCandidateID(req.PreviousID, candidates),
	})
}

// decodeJSON reads a request body of at most MaxBodyBytes into dst and writes
// the error response itself when that fails.
func (h *AnalysisHandler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.limits.MaxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "Invalid JSON format")
	return false
}
