package selection

// PickStableCandidateID keeps previousID selected while it is still in the
// list and otherwise falls back to the top-ranked candidate. It returns ""
// for an empty list.
func PickStableCandidateID(previousID string, candidates []NormalizedCandidate) string {
	if len(candidates) == 0 {
		return ""
	}
	if previousID != "" {
		for _, c := range candidates {
			if c.SensorID == previousID {
				return previousID
			}
		}
	}
	return candidates[0].SensorID
}
