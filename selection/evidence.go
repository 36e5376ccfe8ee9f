// Package selection coerces every strategy's candidate output into one
// ranked list, flags candidates that are computed from the focus sensor, and
// explains why a sensor is missing from the list.
package selection

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"pattern-detector/analytics"
)

type Strategy string

const (
	StrategyUnified      Strategy = "unified"
	StrategySimilarity   Strategy = "similarity"
	StrategyCorrelation  Strategy = "correlation"
	StrategyEventMatch   Strategy = "event_match"
	StrategyCooccurrence Strategy = "cooccurrence"
)

// Badge is a short label/value pair shown next to a candidate.
type Badge struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Evidence is one candidate as reported by a single strategy. Each variant
// keeps its native fields for drill-down.
type Evidence interface {
	Strategy() Strategy
	Sensor() (id string, name *string)
	Score() float64
	ScoreLabel() string
	Badges() []Badge
}

type UnifiedEvidence struct {
	SensorID   string   `json:"sensor_id"`
	SensorName *string  `json:"sensor_name,omitempty"`
	Value      float64  `json:"score"`
	Coverage   *float64 `json:"coverage,omitempty"`
	LagSeconds *int     `json:"lag_seconds,omitempty"`
	Strategies []string `json:"strategies,omitempty"`
}

func (e UnifiedEvidence) Strategy() Strategy { return StrategyUnified }
func (e UnifiedEvidence) Sensor() (string, *string) { return e.SensorID, e.SensorName }
func (e UnifiedEvidence) Score() float64 { return finite(e.Value) }
func (e UnifiedEvidence) ScoreLabel() string { return "Score" }

func (e UnifiedEvidence) Badges() []Badge {
	badges := []Badge{{"score", formatScore(e.Value)}}
	if e.Coverage != nil {
		badges = append(badges, Badge{"coverage", formatPercent(*e.Coverage)})
	}
	if e.LagSeconds != nil {
		badges = append(badges, Badge{"lag", formatLag(*e.LagSeconds)})
	}
	if len(e.Strategies) > 0 {
		badges = append(badges, Badge{"strategies", strconv.Itoa(len(e.Strategies))})
	}
	return badges
}

type SimilarityEvidence struct {
	SensorID     string   `json:"sensor_id"`
	SensorName   *string  `json:"sensor_name,omitempty"`
	Similarity   float64  `json:"similarity"`
	EpisodeCount int      `json:"episode_count"`
	BestDistance *float64 `json:"best_distance,omitempty"`
}

func (e SimilarityEvidence) Strategy() Strategy { return StrategySimilarity }
func (e SimilarityEvidence) Sensor() (string, *string) { return e.SensorID, e.SensorName }
func (e SimilarityEvidence) Score() float64 { return finite(e.Similarity) }
func (e SimilarityEvidence) ScoreLabel() string { return "Similarity" }

func (e SimilarityEvidence) Badges() []Badge {
	badges := []Badge{
		{"similarity", formatScore(e.Similarity)},
		{"episodes", strconv.Itoa(e.EpisodeCount)},
	}
	if e.BestDistance != nil {
		badges = append(badges, Badge{"distance", formatScore(*e.BestDistance)})
	}
	return badges
}

type CorrelationEvidence struct {
	SensorID   string   `json:"sensor_id"`
	SensorName *string  `json:"sensor_name,omitempty"`
	R          float64  `json:"r"`
	LagSeconds int      `json:"lag_seconds"`
	N          int      `json:"n"`
	PValue     *float64 `json:"p_value,omitempty"`
	QValue     *float64 `json:"q_value,omitempty"`
	NEff       *float64 `json:"n_eff,omitempty"`
}

func (e CorrelationEvidence) Strategy() Strategy { return StrategyCorrelation }
func (e CorrelationEvidence) Sensor() (string, *string) { return e.SensorID, e.SensorName }
func (e CorrelationEvidence) Score() float64 { return finite(math.Abs(e.R)) }
func (e CorrelationEvidence) ScoreLabel() string { return "|r|" }

func (e CorrelationEvidence) Badges() []Badge {
	badges := []Badge{
		{"r", strconv.FormatFloat(e.R, 'f', 2, 64)},
		{"lag", formatLag(e.LagSeconds)},
		{"n", strconv.Itoa(e.N)},
	}
	if e.PValue != nil {
		badges = append(badges, Badge{"p", formatP(*e.PValue)})
	}
	if e.QValue != nil {
		badges = append(badges, Badge{"q", formatP(*e.QValue)})
	}
	if e.NEff != nil {
		badges = append(badges, Badge{"n_eff", strconv.FormatFloat(*e.NEff, 'f', 0, 64)})
	}
	return badges
}

type EventMatchEvidence struct {
	SensorID      string  `json:"sensor_id"`
	SensorName    *string `json:"sensor_name,omitempty"`
	MatchRate     float64 `json:"match_rate"`
	MatchedEvents int     `json:"matched_events"`
	FocusEvents   int     `json:"focus_events"`
	LagSeconds    *int    `json:"lag_seconds,omitempty"`
}

func (e EventMatchEvidence) Strategy() Strategy { return StrategyEventMatch }
func (e EventMatchEvidence) Sensor() (string, *string) { return e.SensorID, e.SensorName }
func (e EventMatchEvidence) Score() float64 { return finite(e.MatchRate) }
func (e EventMatchEvidence) ScoreLabel() string { return "Match rate" }

func (e EventMatchEvidence) Badges() []Badge {
	badges := []Badge{
		{"match", formatPercent(e.MatchRate)},
		{"events", fmt.Sprintf("%d/%d", e.MatchedEvents, e.FocusEvents)},
	}
	if e.LagSeconds != nil {
		badges = append(badges, Badge{"lag", formatLag(*e.LagSeconds)})
	}
	return badges
}

type CooccurrenceEvidence struct {
	SensorID          string  `json:"sensor_id"`
	SensorName        *string `json:"sensor_name,omitempty"`
	Value             float64 `json:"score"`
	CooccurrenceCount int     `json:"cooccurrence_count"`
	MaxBucketZ        float64 `json:"max_bucket_z"`
}

func (e CooccurrenceEvidence) Strategy() Strategy { return StrategyCooccurrence }
func (e CooccurrenceEvidence) Sensor() (string, *string) { return e.SensorID, e.SensorName }
func (e CooccurrenceEvidence) Score() float64 { return finite(e.Value) }
func (e CooccurrenceEvidence) ScoreLabel() string { return "Co-occurrence" }

func (e CooccurrenceEvidence) Badges() []Badge {
	return []Badge{
		{"score", strconv.FormatFloat(e.Value, 'f', 1, 64)},
		{"count", strconv.Itoa(e.CooccurrenceCount)},
		{"max z", strconv.FormatFloat(e.MaxBucketZ, 'f', 1, 64)},
	}
}

// DecodePayload decodes a strategy's JSON candidate list into evidence.
// Co-occurrence payloads are bucket lists and are ranked against focusID.
func DecodePayload(strategy Strategy, focusID string, data []byte) ([]Evidence, error) {
	switch strategy {
	case StrategyUnified:
		return decodeList[UnifiedEvidence](data)
	case StrategySimilarity:
		return decodeList[SimilarityEvidence](data)
	case StrategyCorrelation:
		return decodeList[CorrelationEvidence](data)
	case StrategyEventMatch:
		return decodeList[EventMatchEvidence](data)
	case StrategyCooccurrence:
		var buckets []analytics.CooccurrenceBucket
		if err := json.Unmarshal(data, &buckets); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", strategy, err)
		}
		return FromCooccurrence(analytics.RankCooccurringSensors(buckets, focusID)), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", strategy)
}

func decodeList[T Evidence](data []byte) ([]Evidence, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		var zero T
		return nil, fmt.Errorf("decode %s payload: %w", zero.Strategy(), err)
	}
	out := make([]Evidence, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

// FromCooccurrence turns a local per-sensor co-occurrence ranking into evidence.
func FromCooccurrence(ranking []analytics.SensorCooccurrence) []Evidence {
	out := make([]Evidence, len(ranking))
	for i, r := range ranking {
		out[i] = CooccurrenceEvidence{
			SensorID:          r.SensorID,
			Value:             r.Score,
			CooccurrenceCount: r.CooccurrenceCount,
			MaxBucketZ:        r.MaxBucketZ,
		}
	}
	return out
}

// FromLagScans turns local lag scans against the focus sensor into
// correlation evidence at each scan's best lag. Scans with no computable
// correlation are skipped.
func FromLagScans(scans []analytics.LagScanResult) []Evidence {
	out := make([]Evidence, 0, len(scans))
	for _, s := range scans {
		if s.Best == nil || s.Best.R == nil {
			continue
		}
		out = append(out, CorrelationEvidence{
			SensorID:   s.OtherSensorID,
			R:          *s.Best.R,
			LagSeconds: s.Best.LagSeconds,
			N:          s.Best.N,
		})
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 0, 64) + "%"
}

func formatP(v float64) string {
	if v < 0.001 {
		return "<0.001"
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// formatLag renders seconds as a signed minute/hour string, e.g. "+10m".
func formatLag(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	switch {
	case seconds == 0:
		return "0"
	case seconds%3600 == 0:
		return sign + strconv.Itoa(seconds/3600) + "h"
	case seconds%60 == 0:
		return sign + strconv.Itoa(seconds/60) + "m"
	}
	return sign + strconv.Itoa(seconds) + "s"
}
