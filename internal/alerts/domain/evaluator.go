package alerts

import (
	measurements "aquatracking/internal/measurements/domain"
)

// Direction tells which bound a value crossed.
type Direction string

const (
	DirectionNone     Direction = "none"
	DirectionBelowMin Direction = "below-min"
	DirectionAboveMax Direction = "above-max"
)

// Decision is the outcome of evaluating one value against a subscription.
type Decision struct {
	Breached  bool
	Direction Direction
	// Threshold is the crossed bound; zero when not breached.
	Threshold float64
}

// Evaluate checks value against the subscription thresholds. Bounds are
// inclusive: a value equal to min or max does not breach. The min check
// runs first.
func Evaluate(sub measurements.Subscription, value float64) Decision {
	if sub.Min != nil && value < *sub.Min {
		return Decision{Breached: true, Direction: DirectionBelowMin, Threshold: *sub.Min}
	}
	if sub.Max != nil && value > *sub.Max {
		return Decision{Breached: true, Direction: DirectionAboveMax, Threshold: *sub.Max}
	}
	return Decision{Direction: DirectionNone}
}
