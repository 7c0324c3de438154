// Package consensus aggregates annotations into agreement rates and official
// consensus records, automatically above a threshold or by manual override.
package consensus

import (
	"fmt"
	"time"

	"github.com/quorumhq/quorum/internal/models"
)

// Agreement is the result of aggregating all annotations for one task.
type Agreement struct {
	// Rate is the mean per-field majority fraction, as a percentage [0,100].
	Rate float64
	// Fields is the number of scalar fields that contributed to the rate.
	Fields int
	// Candidate is the synthesized consensus payload: per scalar field the
	// majority value, ties broken by most recent submission; non-scalar
	// fields carried from the most recent annotation.
	Candidate map[string]interface{}
}

// ComputeAgreement aggregates annotations field by field. Returns nil when
// there are no annotations: the agreement rate is undefined.
func ComputeAgreement(anns []models.Annotation) (*Agreement, error) {
	if len(anns) == 0 {
		return nil, nil
	}

	type sample struct {
		value interface{}
		at    time.Time
	}
	fields := make(map[string][]sample)
	var latest map[string]interface{}
	var latestAt time.Time

	for i := range anns {
		data, err := anns[i].DataMap()
		if err != nil {
			return nil, fmt.Errorf("consensus: annotation %s/%s/%d: %w",
				anns[i].DiscussionID, anns[i].UserID, anns[i].TaskID, err)
		}
		at := anns[i].UpdatedAt
		if at.IsZero() {
			at = anns[i].CreatedAt
		}
		if latest == nil || at.After(latestAt) {
			latest = data
			latestAt = at
		}
		for k, v := range data {
			if !isScalar(v) {
				continue
			}
			fields[k] = append(fields[k], sample{value: v, at: at})
		}
	}

	candidate := make(map[string]interface{})
	for k, v := range latest {
		if !isScalar(v) {
			candidate[k] = v
		}
	}

	if len(fields) == 0 {
		return &Agreement{Rate: 0, Fields: 0, Candidate: candidate}, nil
	}

	var total float64
	for name, samples := range fields {
		counts := make(map[string]int)
		values := make(map[string]interface{})
		lastSeen := make(map[string]time.Time)
		for _, s := range samples {
			key := normalizeValue(s.value)
			counts[key]++
			values[key] = s.value
			if s.at.After(lastSeen[key]) {
				lastSeen[key] = s.at
			}
		}

		var majorityKey string
		majorityCount := -1
		for key, n := range counts {
			switch {
			case n > majorityCount:
				majorityKey, majorityCount = key, n
			case n == majorityCount && lastSeen[key].After(lastSeen[majorityKey]):
				majorityKey = key
			}
		}

		candidate[name] = values[majorityKey]
		total += float64(majorityCount) / float64(len(samples))
	}

	return &Agreement{
		Rate:      total / float64(len(fields)) * 100,
		Fields:    len(fields),
		Candidate: candidate,
	}, nil
}

// isScalar reports whether a decoded JSON value participates in agreement
// computation. Objects and arrays are excluded.
func isScalar(v interface{}) bool {
	switch v.(type) {
	case bool, string, float64, int, int64:
		return true
	default:
		return false
	}
}

// normalizeValue keys a scalar for vote counting so 3 and 3.0 agree.
func normalizeValue(v interface{}) string {
	return fmt.Sprintf("%v", v)
}
