package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type AnalysisKind string

const (
	KindEvents        AnalysisKind = "events"
	KindMatrixProfile AnalysisKind = "matrix-profile"
	KindHeatmap       AnalysisKind = "heatmap"
	KindLagScan       AnalysisKind = "lag-scan"
	KindSmooth        AnalysisKind = "smooth"
	KindDrift         AnalysisKind = "drift"
	KindDriftLag      AnalysisKind = "drift-lag"
	KindCooccurrence  AnalysisKind = "cooccurrence"
)

const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// AnalysisRequest carries the parameters of one analysis over a decoded frame.
// Which fields matter depends on Kind.
type AnalysisRequest struct {
	Kind             AnalysisKind `json:"kind"`
	SensorID         string       `json:"sensor_id"`
	OtherSensorID    string       `json:"other_sensor_id,omitempty"`
	IntervalSeconds  int          `json:"interval_seconds,omitempty"`
	ZThreshold       float64      `json:"z_threshold,omitempty"`
	MinSeparation    int          `json:"min_separation,omitempty"`
	Polarity         string       `json:"polarity,omitempty"`
	Window           int          `json:"window,omitempty"`
	ExclusionZone    int          `json:"exclusion_zone,omitempty"`
	Target           int          `json:"target,omitempty"`
	TopK             int          `json:"top_k,omitempty"`
	Method           string       `json:"method,omitempty"`
	MaxLagBuckets    int          `json:"max_lag_buckets,omitempty"`
	PolyOrder        int          `json:"poly_order,omitempty"`
	DerivOrder       int          `json:"deriv_order,omitempty"`
	Delta            float64      `json:"delta,omitempty"`
	Degree           int          `json:"degree,omitempty"`
	Center           *float64     `json:"center,omitempty"`
	TimeSlope        bool         `json:"time_slope,omitempty"`
	ToleranceBuckets int          `json:"tolerance_buckets,omitempty"`
	MinSensors       int          `json:"min_sensors,omitempty"`
	MaxResults       int          `json:"max_results,omitempty"`
	MaxPoints        int          `json:"max_points,omitempty"`
}

func (r *AnalysisRequest) Validate() error {
	switch r.Kind {
	case KindEvents, KindMatrixProfile, KindHeatmap, KindSmooth:
		if r.SensorID == "" {
			return errors.New("sensor_id is required")
		}
	case KindLagScan, KindDrift, KindDriftLag:
		if r.SensorID == "" || r.OtherSensorID == "" {
			return errors.New("sensor_id and other_sensor_id are required")
		}
	case KindCooccurrence:
	default:
		return fmt.Errorf("unknown analysis kind %q", r.Kind)
	}

	switch r.Kind {
	case KindEvents, KindLagScan, KindDriftLag, KindCooccurrence:
		if r.IntervalSeconds <= 0 {
			return errors.New("interval_seconds must be positive")
		}
	}

	if r.Kind == KindEvents || r.Kind == KindCooccurrence {
		if r.ZThreshold <= 0 {
			return errors.New("z_threshold must be positive")
		}
		switch r.Polarity {
		case "", "both", "up", "down":
		default:
			return errors.New("polarity must be one of both, up, down")
		}
	}

	if (r.Kind == KindMatrixProfile || r.Kind == KindHeatmap) && r.Window < 2 {
		return errors.New("window must be at least 2")
	}

	if r.Kind == KindLagScan {
		switch r.Method {
		case "", "pearson", "spearman":
		default:
			return errors.New("method must be pearson or spearman")
		}
		if r.MaxLagBuckets < 0 {
			return errors.New("max_lag_buckets must be non-negative")
		}
	}

	if (r.Kind == KindDrift || r.Kind == KindDriftLag) && r.Degree < 1 {
		return errors.New("degree must be at least 1")
	}

	if r.MaxPoints < 0 || r.MaxResults < 0 || r.MinSeparation < 0 || r.ToleranceBuckets < 0 {
		return errors.New("limits must be non-negative")
	}

	return nil
}

// AnalysisResult is what the job engine stores and the API returns.
type AnalysisResult struct {
	ID          string          `json:"id"`
	Kind        AnalysisKind    `json:"kind"`
	Status      string          `json:"status"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	ProcessedAt time.Time       `json:"processed_at"`
}
