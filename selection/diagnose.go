package selection

import "fmt"

type Reason string

const (
	ReasonPresent         Reason = "present"
	ReasonFocus           Reason = "focus"
	ReasonNotEligible     Reason = "not_eligible"
	ReasonCoverage        Reason = "coverage_prefilter"
	ReasonTruncatedPinned Reason = "truncated_pinned"
	ReasonTruncated       Reason = "truncated"
	ReasonSkipped         Reason = "skipped"
	ReasonBelowThreshold  Reason = "below_threshold"
	ReasonNotEvaluated    Reason = "not_evaluated"
)

// Skip reasons a backend reports for sensors it could not load.
const (
	SkipNoHistory = "no_history"
	SkipProvider  = "provider_sensor"
	SkipForecast  = "forecast_sensor"
)

const providerSkipLabel = "Provider or forecast sensor without stored history"

// JobResult is the part of a backend job's bookkeeping needed to explain
// absences.
type JobResult struct {
	RankedIDs          []string          `json:"ranked_ids"`
	EvaluatedIDs       []string          `json:"evaluated_ids"`
	CoverageDroppedIDs []string          `json:"coverage_dropped_ids"`
	TruncatedIDs       []string          `json:"truncated_ids"`
	PinnedIDs          []string          `json:"pinned_ids"`
	CandidateCap       int               `json:"candidate_cap"`
	Skipped            map[string]string `json:"skipped"`
}

type Diagnosis struct {
	SensorID string `json:"sensor_id"`
	Reason   Reason `json:"reason"`
	Label    string `json:"label"`
}

// Diagnose explains why sensorID is or is not in a job's ranked output.
// Checks run in a fixed order and the first match wins.
func Diagnose(focusID, sensorID string, eligibleIDs []string, job JobResult) Diagnosis {
	d := Diagnosis{SensorID: sensorID}

	switch {
	case sensorID == focusID:
		d.Reason, d.Label = ReasonFocus, "This is the focus sensor"
	case contains(job.RankedIDs, sensorID):
		d.Reason, d.Label = ReasonPresent, "Included in the ranked results"
	case !contains(eligibleIDs, sensorID):
		d.Reason, d.Label = ReasonNotEligible, "Not in the eligible sensor pool"
	case contains(job.CoverageDroppedIDs, sensorID):
		d.Reason, d.Label = ReasonCoverage, "Dropped by the coverage prefilter"
	case contains(job.TruncatedIDs, sensorID):
		if contains(job.PinnedIDs, sensorID) {
			d.Reason = ReasonTruncatedPinned
			d.Label = fmt.Sprintf("Pinned sensor cut by the candidate limit (%d)", job.CandidateCap)
		} else {
			d.Reason = ReasonTruncated
			d.Label = fmt.Sprintf("Cut by the candidate limit (%d)", job.CandidateCap)
		}
	case job.Skipped[sensorID] != "":
		d.Reason = ReasonSkipped
		switch reason := job.Skipped[sensorID]; reason {
		case SkipNoHistory, SkipProvider, SkipForecast:
			d.Label = providerSkipLabel
		default:
			d.Label = "Skipped: " + reason
		}
	case contains(job.EvaluatedIDs, sensorID):
		d.Reason, d.Label = ReasonBelowThreshold, "Evaluated but below the evidence threshold"
	default:
		d.Reason, d.Label = ReasonNotEvaluated, "Not evaluated by this job"
	}
	return d
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
