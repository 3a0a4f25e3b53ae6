package alerts

import (
	"testing"

	measurements "aquatracking/internal/measurements/domain"
)

func ptr(v float64) *float64 { return &v }

func TestEvaluateThresholds(t *testing.T) {
	sub := measurements.Subscription{BiotopeID: "b1", MetricCode: "TEMPERATURE", Min: ptr(10), Max: ptr(20)}

	cases := []struct {
		value     float64
		breached  bool
		direction Direction
		threshold float64
	}{
		{9.9, true, DirectionBelowMin, 10},
		{20.1, true, DirectionAboveMax, 20},
		{15, false, DirectionNone, 0},
		{10, false, DirectionNone, 0},
		{20, false, DirectionNone, 0},
	}
	for _, tc := range cases {
		got := Evaluate(sub, tc.value)
		if got.Breached != tc.breached || got.Direction != tc.direction || got.Threshold != tc.threshold {
			t.Fatalf("value %v: expected {%v %s %v}, got %+v", tc.value, tc.breached, tc.direction, tc.threshold, got)
		}
	}
}

func TestEvaluateSingleBound(t *testing.T) {
	onlyMax := measurements.Subscription{Max: ptr(8)}
	if got := Evaluate(onlyMax, -100); got.Breached {
		t.Fatalf("expected no breach without min, got %+v", got)
	}
	if got := Evaluate(onlyMax, 8.5); got.Direction != DirectionAboveMax {
		t.Fatalf("expected above-max, got %+v", got)
	}

	onlyMin := measurements.Subscription{Min: ptr(6.5)}
	if got := Evaluate(onlyMin, 1000); got.Breached {
		t.Fatalf("expected no breach without max, got %+v", got)
	}
}

func TestEvaluateNoThresholds(t *testing.T) {
	if got := Evaluate(measurements.Subscription{}, 42); got.Breached {
		t.Fatalf("expected no breach, got %+v", got)
	}
}

func TestEvaluateMinTakesPrecedence(t *testing.T) {
	sub := measurements.Subscription{Min: ptr(20), Max: ptr(10)}
	got := Evaluate(sub, 5)
	if got.Direction != DirectionBelowMin || got.Threshold != 20 {
		t.Fatalf("expected below-min first, got %+v", got)
	}
}
