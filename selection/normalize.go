package selection

import "sort"

const (
	StatusOK      = "ok"
	StatusDerived = "derived_from_focus"
)

type NormalizedCandidate struct {
	SensorID   string   `json:"sensor_id"`
	Label      string   `json:"label"`
	Rank       int      `json:"rank"`
	Score      float64  `json:"score"`
	ScoreLabel string   `json:"score_label"`
	Badges     []Badge  `json:"badges"`
	Strategy   Strategy `json:"strategy"`
	Status     string   `json:"status"`
	Raw        Evidence `json:"raw"`
}

type NormalizeOptions struct {
	FocusID    string
	Graph      DependencyGraph
	MaxDepth   int
	MaxVisited int
}

// Normalize ranks evidence by descending score, ties broken by sensor id.
// The focus sensor itself and entries without an id are dropped; when a
// graph is given, candidates computed from the focus are marked derived.
func Normalize(evidence []Evidence, opts NormalizeOptions) []NormalizedCandidate {
	out := make([]NormalizedCandidate, 0, len(evidence))
	for _, ev := range evidence {
		if ev == nil {
			continue
		}
		id, name := ev.Sensor()
		if id == "" || id == opts.FocusID {
			continue
		}
		label := id
		if name != nil && *name != "" {
			label = *name
		}
		status := StatusOK
		if opts.Graph != nil && IsDerivedFromFocus(id, opts.FocusID, opts.Graph, opts.MaxDepth, opts.MaxVisited) {
			status = StatusDerived
		}
		out = append(out, NormalizedCandidate{
			SensorID:   id,
			Label:      label,
			Score:      ev.Score(),
			ScoreLabel: ev.ScoreLabel(),
			Badges:     ev.Badges(),
			Strategy:   ev.Strategy(),
			Status:     status,
			Raw:        ev,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SensorID < out[j].SensorID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}
