package measurements

import (
	"context"
	"fmt"
	"math"
	"time"
)

// DefaultQueryWindow is used when a range query omits its lower bound.
const DefaultQueryWindow = 24 * time.Hour

// Measurement is a single environmental value recorded for a biotope.
type Measurement struct {
	ID         string    `json:"id"`
	BiotopeID  string    `json:"biotope_id"`
	MetricCode string    `json:"measurement_type_code"`
	Value      float64   `json:"value"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Validate checks measurement invariants.
func (m Measurement) Validate() error {
	if m.BiotopeID == "" {
		return fmt.Errorf("%w: empty biotope id", ErrValidation)
	}
	if m.MetricCode == "" {
		return fmt.Errorf("%w: empty metric code", ErrValidation)
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return fmt.Errorf("%w: value must be a finite number", ErrValidation)
	}
	return nil
}

// MeasurementQuery selects measurements of a biotope within [From, To].
// An empty MetricCodes matches every metric.
type MeasurementQuery struct {
	BiotopeID   string
	MetricCodes []string
	From        time.Time
	To          time.Time
}

// Normalize applies the default window: To defaults to now and From to
// DefaultQueryWindow before To.
func (q MeasurementQuery) Normalize(now time.Time) (MeasurementQuery, error) {
	if q.BiotopeID == "" {
		return q, fmt.Errorf("%w: empty biotope id", ErrValidation)
	}
	if q.To.IsZero() {
		q.To = now
	}
	if q.From.IsZero() {
		q.From = q.To.Add(-DefaultQueryWindow)
	}
	if q.To.Before(q.From) {
		return q, fmt.Errorf("%w: to must not be before from", ErrValidation)
	}
	q.From = q.From.UTC()
	q.To = q.To.UTC()
	return q, nil
}

// Matches reports whether m falls within the query.
func (q MeasurementQuery) Matches(m Measurement) bool {
	if m.BiotopeID != q.BiotopeID {
		return false
	}
	if m.MeasuredAt.Before(q.From) || m.MeasuredAt.After(q.To) {
		return false
	}
	if len(q.MetricCodes) == 0 {
		return true
	}
	for _, code := range q.MetricCodes {
		if code == m.MetricCode {
			return true
		}
	}
	return false
}

// MeasurementRepository persists measurements.
type MeasurementRepository interface {
	// Insert stores m, assigning ID and MeasuredAt when empty.
	Insert(ctx context.Context, m *Measurement) error
	// Query returns matching measurements ordered by MeasuredAt ascending.
	Query(ctx context.Context, q MeasurementQuery) ([]Measurement, error)
	// Get returns the measurement of the biotope, or nil when it is absent
	// or belongs to another biotope.
	Get(ctx context.Context, biotopeID, id string) (*Measurement, error)
	// Last returns the most recent measurement for the pair, or nil.
	Last(ctx context.Context, biotopeID, metricCode string) (*Measurement, error)
	// Delete removes a measurement owned by the biotope.
	Delete(ctx context.Context, biotopeID, id string) error
}
