package measurements

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Subscription configures alert thresholds for one metric of a biotope.
// At most one subscription exists per (BiotopeID, MetricCode).
type Subscription struct {
	BiotopeID  string    `json:"biotope_id"`
	MetricCode string    `json:"measurement_type_code"`
	Order      int       `json:"order"`
	Min        *float64  `json:"min"`
	Max        *float64  `json:"max"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks subscription invariants.
func (s Subscription) Validate() error {
	if s.BiotopeID == "" {
		return fmt.Errorf("%w: empty biotope id", ErrValidation)
	}
	if s.MetricCode == "" {
		return fmt.Errorf("%w: empty metric code", ErrValidation)
	}
	if s.Min != nil && !finite(*s.Min) {
		return fmt.Errorf("%w: min must be a finite number", ErrValidation)
	}
	if s.Max != nil && !finite(*s.Max) {
		return fmt.Errorf("%w: max must be a finite number", ErrValidation)
	}
	if s.Min != nil && s.Max != nil && *s.Min > *s.Max {
		return fmt.Errorf("%w: min greater than max", ErrValidation)
	}
	return nil
}

// ThresholdPatch updates one threshold. Set=false leaves it unchanged,
// Set=true with a nil Value clears it.
type ThresholdPatch struct {
	Set   bool
	Value *float64
}

// SubscriptionPatch is a partial update of a subscription.
type SubscriptionPatch struct {
	Order *int
	Min   ThresholdPatch
	Max   ThresholdPatch
}

// Apply copies the patched fields onto s.
func (p SubscriptionPatch) Apply(s *Subscription) {
	if s == nil {
		return
	}
	if p.Order != nil {
		s.Order = *p.Order
	}
	if p.Min.Set {
		s.Min = cloneFloat(p.Min.Value)
	}
	if p.Max.Set {
		s.Max = cloneFloat(p.Max.Value)
	}
}

// SubscriptionRepository persists subscriptions.
type SubscriptionRepository interface {
	Get(ctx context.Context, biotopeID, metricCode string) (*Subscription, error)
	// ListByBiotope returns subscriptions ordered by Order ascending.
	ListByBiotope(ctx context.Context, biotopeID string) ([]Subscription, error)
	// MaxOrder returns the highest order of the biotope, ok=false when it has none.
	MaxOrder(ctx context.Context, biotopeID string) (order int, ok bool, err error)
	// Create fails with ErrConflict when the pair already exists.
	Create(ctx context.Context, sub *Subscription) error
	// Update fails with ErrNotFound when the pair does not exist.
	Update(ctx context.Context, sub *Subscription) error
	// Delete fails with ErrNotFound when the pair does not exist.
	Delete(ctx context.Context, biotopeID, metricCode string) error
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
