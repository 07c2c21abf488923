package types

import (
	"encoding/json"
	"strconv"
)

// Metric is a numeric statistic that may be indeterminate because its source
// table was missing or had no row for the contig. The zero value is
// indeterminate.
type Metric struct {
	value float64
	known bool
}

// Known wraps a determined value.
func Known(v float64) Metric { return Metric{value: v, known: true} }

// Indeterminate returns a metric with no value.
func Indeterminate() Metric { return Metric{} }

// IsKnown reports whether the metric carries a value.
func (m Metric) IsKnown() bool { return m.known }

// Value returns the value and whether it is known.
func (m Metric) Value() (float64, bool) { return m.value, m.known }

// Check is the outcome of comparing a metric to a threshold.
type Check int

const (
	CheckIndeterminate Check = iota
	CheckPass
	CheckFail
)

// AtLeast compares the metric against threshold. An indeterminate metric never
// passes or fails.
func (m Metric) AtLeast(threshold float64) Check {
	if !m.known {
		return CheckIndeterminate
	}
	if m.value >= threshold {
		return CheckPass
	}
	return CheckFail
}

// Format renders the value for CSV output; indeterminate renders as "NA".
func (m Metric) Format() string {
	if !m.known {
		return "NA"
	}
	return strconv.FormatFloat(m.value, 'f', -1, 64)
}

func (m Metric) String() string { return m.Format() }

// MarshalJSON encodes an indeterminate metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.known {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// UnmarshalJSON accepts a number or null.
func (m *Metric) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Indeterminate()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = Known(v)
	return nil
}
