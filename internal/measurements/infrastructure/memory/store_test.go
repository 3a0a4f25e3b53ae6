package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	measurements "aquatracking/internal/measurements/domain"
)

func newTestStore() *Store {
	return NewStore(
		measurements.MetricType{Code: "TEMPERATURE", Name: "Température", Unit: "°C"},
		measurements.MetricType{Code: "PH", Name: "pH"},
	)
}

func TestMeasurementInsertAssignsIDAndRejectsUnknownMetric(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore().Measurements()

	m := &measurements.Measurement{BiotopeID: "b1", MetricCode: "PH", Value: 7.2}
	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if m.ID == "" || m.MeasuredAt.IsZero() {
		t.Fatalf("expected id and timestamp to be assigned, got %+v", m)
	}

	err := repo.Insert(ctx, &measurements.Measurement{BiotopeID: "b1", MetricCode: "CO2", Value: 1})
	if !errors.Is(err, measurements.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMeasurementQueryOrderingAndLast(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore().Measurements()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		m := &measurements.Measurement{BiotopeID: "b1", MetricCode: "PH", Value: float64(i), MeasuredAt: base.Add(offset)}
		if err := repo.Insert(ctx, m); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := repo.Insert(ctx, &measurements.Measurement{BiotopeID: "b2", MetricCode: "PH", Value: 9, MeasuredAt: base.Add(3 * time.Hour)}); err != nil {
		t.Fatalf("insert other biotope: %v", err)
	}

	got, err := repo.Query(ctx, measurements.MeasurementQuery{BiotopeID: "b1", From: base, To: base.Add(2 * time.Hour)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 measurements, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].MeasuredAt.Before(got[i-1].MeasuredAt) {
			t.Fatalf("expected ascending order, got %v", got)
		}
	}

	last, err := repo.Last(ctx, "b1", "PH")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || !last.MeasuredAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("unexpected last measurement %+v", last)
	}
	none, err := repo.Last(ctx, "b1", "TEMPERATURE")
	if err != nil || none != nil {
		t.Fatalf("expected nil last, got %+v, %v", none, err)
	}
}

func TestMeasurementDeleteScopedToBiotope(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore().Measurements()
	m := &measurements.Measurement{BiotopeID: "b1", MetricCode: "PH", Value: 7}
	if err := repo.Insert(ctx, m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if got, err := repo.Get(ctx, "b1", m.ID); err != nil || got == nil || got.Value != 7 {
		t.Fatalf("unexpected get %+v, %v", got, err)
	}
	if got, err := repo.Get(ctx, "b2", m.ID); err != nil || got != nil {
		t.Fatalf("expected nil for foreign biotope, got %+v, %v", got, err)
	}
	if err := repo.Delete(ctx, "b2", m.ID); !errors.Is(err, measurements.ErrNotFound) {
		t.Fatalf("expected not found for foreign biotope, got %v", err)
	}
	if err := repo.Delete(ctx, "b1", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "b1", m.ID); !errors.Is(err, measurements.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestSubscriptionLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestStore().Subscriptions()

	if _, ok, err := repo.MaxOrder(ctx, "b1"); err != nil || ok {
		t.Fatalf("expected no max order, got ok=%v err=%v", ok, err)
	}

	max := 28.0
	sub := &measurements.Subscription{BiotopeID: "b1", MetricCode: "TEMPERATURE", Order: 3, Max: &max}
	if err := repo.Create(ctx, sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &measurements.Subscription{BiotopeID: "b1", MetricCode: "TEMPERATURE"}); !errors.Is(err, measurements.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := repo.Create(ctx, &measurements.Subscription{BiotopeID: "b1", MetricCode: "PH", Order: 1}); err != nil {
		t.Fatalf("create ph: %v", err)
	}

	max = 99
	got, err := repo.Get(ctx, "b1", "TEMPERATURE")
	if err != nil || got == nil {
		t.Fatalf("get: %+v, %v", got, err)
	}
	if *got.Max != 28 {
		t.Fatalf("stored subscription must not alias caller memory, got %v", *got.Max)
	}

	list, err := repo.ListByBiotope(ctx, "b1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].MetricCode != "PH" {
		t.Fatalf("expected PH first by order, got %+v", list)
	}
	if order, ok, _ := repo.MaxOrder(ctx, "b1"); !ok || order != 3 {
		t.Fatalf("expected max order 3, got %d/%v", order, ok)
	}

	got.Max = nil
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.Update(ctx, &measurements.Subscription{BiotopeID: "b1", MetricCode: "GH"}); !errors.Is(err, measurements.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := repo.Delete(ctx, "b1", "TEMPERATURE"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, "b1", "TEMPERATURE"); !errors.Is(err, measurements.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestMetricTypeDeleteInUse(t *testing.T) {
	ctx := context.Background()
	store := newTestStore()
	types := store.MetricTypes()

	if err := store.Subscriptions().Create(ctx, &measurements.Subscription{BiotopeID: "b1", MetricCode: "PH"}); err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if err := types.Delete(ctx, "PH"); !errors.Is(err, measurements.ErrMetricTypeInUse) {
		t.Fatalf("expected in-use error, got %v", err)
	}
	if err := types.Delete(ctx, "TEMPERATURE"); err != nil {
		t.Fatalf("delete unused: %v", err)
	}
	if got, _ := types.Get(ctx, "TEMPERATURE"); got != nil {
		t.Fatalf("expected metric type removed")
	}
	if err := types.Save(ctx, &measurements.MetricType{Code: "KH"}); !errors.Is(err, measurements.ErrValidation) {
		t.Fatalf("expected validation error for nameless type, got %v", err)
	}
}
