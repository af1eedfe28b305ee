// Package metrics derives unused tags, comment coverage and health scores
// from parsed snapshots.
package metrics

import (
	"encoding/json"
	"fmt"
)

const (
	statusComputed      = "computed"
	statusNotApplicable = "not_applicable"
)

// Score is either a computed 0-100 value or not applicable, with a reason.
// The zero Score is not applicable.
type Score struct {
	value    int
	computed bool
	reason   string
}

// Computed returns a computed score.
func Computed(v int) Score {
	return Score{value: v, computed: true}
}

// NotApplicable returns a score that could not be computed.
func NotApplicable(reason string) Score {
	return Score{reason: reason}
}

// Value returns the score and whether it was computed.
func (s Score) Value() (int, bool) {
	return s.value, s.computed
}

// IsComputed reports whether a value is present.
func (s Score) IsComputed() bool {
	return s.computed
}

// Reason explains why the score is not applicable.
func (s Score) Reason() string {
	return s.reason
}

func (s Score) String() string {
	if s.computed {
		return fmt.Sprintf("%d", s.value)
	}
	return "n/a (" + s.reason + ")"
}

type scoreJSON struct {
	Status string `json:"status"`
	Value  *int   `json:"value,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func (s Score) MarshalJSON() ([]byte, error) {
	if s.computed {
		v := s.value
		return json.Marshal(scoreJSON{Status: statusComputed, Value: &v})
	}
	return json.Marshal(scoreJSON{Status: statusNotApplicable, Reason: s.reason})
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var raw scoreJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case statusComputed:
		if raw.Value == nil {
			return fmt.Errorf("computed score without value")
		}
		*s = Computed(*raw.Value)
	case statusNotApplicable:
		*s = NotApplicable(raw.Reason)
	default:
		return fmt.Errorf("unknown score status %q", raw.Status)
	}
	return nil
}
