package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	measurements "aquatracking/internal/measurements/domain"
)

type pairKey struct {
	biotopeID  string
	metricCode string
}

// Store keeps measurements, subscriptions and the metric catalog in memory.
// The three repositories share one lock so that referential checks see a
// consistent view.
type Store struct {
	mu            sync.RWMutex
	metricTypes   map[string]measurements.MetricType
	measurements  map[string]measurements.Measurement
	subscriptions map[pairKey]measurements.Subscription
	now           func() time.Time
}

// NewStore constructs a store seeded with the given metric types.
func NewStore(types ...measurements.MetricType) *Store {
	s := &Store{
		metricTypes:   make(map[string]measurements.MetricType),
		measurements:  make(map[string]measurements.Measurement),
		subscriptions: make(map[pairKey]measurements.Subscription),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, t := range types {
		s.metricTypes[t.Code] = t
	}
	return s
}

// Measurements returns the measurement repository view.
func (s *Store) Measurements() *MeasurementRepository {
	return &MeasurementRepository{store: s}
}

// Subscriptions returns the subscription repository view.
func (s *Store) Subscriptions() *SubscriptionRepository {
	return &SubscriptionRepository{store: s}
}

// MetricTypes returns the metric type repository view.
func (s *Store) MetricTypes() *MetricTypeRepository {
	return &MetricTypeRepository{store: s}
}

// MeasurementRepository is an in-memory measurements.MeasurementRepository.
type MeasurementRepository struct {
	store *Store
}

// Insert stores the measurement.
func (r *MeasurementRepository) Insert(_ context.Context, m *measurements.Measurement) error {
	if m == nil {
		return fmt.Errorf("%w: nil measurement", measurements.ErrValidation)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metricTypes[m.MetricCode]; !ok {
		return fmt.Errorf("%w: unknown metric type %s", measurements.ErrValidation, m.MetricCode)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = s.now()
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	if _, exists := s.measurements[m.ID]; exists {
		return fmt.Errorf("%w: measurement %s", measurements.ErrConflict, m.ID)
	}
	s.measurements[m.ID] = *m
	return nil
}

// Query returns matching measurements ordered by MeasuredAt.
func (r *MeasurementRepository) Query(_ context.Context, q measurements.MeasurementQuery) ([]measurements.Measurement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]measurements.Measurement, 0)
	for _, m := range s.measurements {
		if q.Matches(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeasuredAt.Equal(out[j].MeasuredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].MeasuredAt.Before(out[j].MeasuredAt)
	})
	return out, nil
}

// Get returns the measurement if it belongs to the biotope.
func (r *MeasurementRepository) Get(_ context.Context, biotopeID, id string) (*measurements.Measurement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.measurements[id]
	if !ok || m.BiotopeID != biotopeID {
		return nil, nil
	}
	return &m, nil
}

// Last returns the most recent measurement of the pair, or nil.
func (r *MeasurementRepository) Last(_ context.Context, biotopeID, metricCode string) (*measurements.Measurement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *measurements.Measurement
	for _, m := range s.measurements {
		if m.BiotopeID != biotopeID || m.MetricCode != metricCode {
			continue
		}
		if last == nil || m.MeasuredAt.After(last.MeasuredAt) {
			candidate := m
			last = &candidate
		}
	}
	return last, nil
}

// Delete removes a measurement owned by the biotope.
func (r *MeasurementRepository) Delete(_ context.Context, biotopeID, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.measurements[id]
	if !ok || m.BiotopeID != biotopeID {
		return fmt.Errorf("%w: measurement %s", measurements.ErrNotFound, id)
	}
	delete(s.measurements, id)
	return nil
}

// SubscriptionRepository is an in-memory measurements.SubscriptionRepository.
type SubscriptionRepository struct {
	store *Store
}

// Get returns the subscription of the pair, or nil.
func (r *SubscriptionRepository) Get(_ context.Context, biotopeID, metricCode string) (*measurements.Subscription, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[pairKey{biotopeID, metricCode}]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(sub), nil
}

// ListByBiotope returns the biotope's subscriptions ordered by Order.
func (r *SubscriptionRepository) ListByBiotope(_ context.Context, biotopeID string) ([]measurements.Subscription, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]measurements.Subscription, 0)
	for key, sub := range s.subscriptions {
		if key.biotopeID == biotopeID {
			out = append(out, *cloneSubscription(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order == out[j].Order {
			return out[i].MetricCode < out[j].MetricCode
		}
		return out[i].Order < out[j].Order
	})
	return out, nil
}

// MaxOrder returns the highest order used by the biotope.
func (r *SubscriptionRepository) MaxOrder(_ context.Context, biotopeID string) (int, bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	highest, found := 0, false
	for key, sub := range s.subscriptions {
		if key.biotopeID != biotopeID {
			continue
		}
		if !found || sub.Order > highest {
			highest = sub.Order
			found = true
		}
	}
	return highest, found, nil
}

// Create inserts a subscription.
func (r *SubscriptionRepository) Create(_ context.Context, sub *measurements.Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscription", measurements.ErrValidation)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metricTypes[sub.MetricCode]; !ok {
		return fmt.Errorf("%w: unknown metric type %s", measurements.ErrValidation, sub.MetricCode)
	}
	key := pairKey{sub.BiotopeID, sub.MetricCode}
	if _, exists := s.subscriptions[key]; exists {
		return fmt.Errorf("%w: subscription %s/%s", measurements.ErrConflict, sub.BiotopeID, sub.MetricCode)
	}
	now := s.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	s.subscriptions[key] = *cloneSubscription(*sub)
	return nil
}

// Update replaces an existing subscription.
func (r *SubscriptionRepository) Update(_ context.Context, sub *measurements.Subscription) error {
	if sub == nil {
		return fmt.Errorf("%w: nil subscription", measurements.ErrValidation)
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{sub.BiotopeID, sub.MetricCode}
	existing, ok := s.subscriptions[key]
	if !ok {
		return fmt.Errorf("%w: subscription %s/%s", measurements.ErrNotFound, sub.BiotopeID, sub.MetricCode)
	}
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = s.now()
	s.subscriptions[key] = *cloneSubscription(*sub)
	return nil
}

// Delete removes a subscription.
func (r *SubscriptionRepository) Delete(_ context.Context, biotopeID, metricCode string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{biotopeID, metricCode}
	if _, ok := s.subscriptions[key]; !ok {
		return fmt.Errorf("%w: subscription %s/%s", measurements.ErrNotFound, biotopeID, metricCode)
	}
	delete(s.subscriptions, key)
	return nil
}

// MetricTypeRepository is an in-memory measurements.MetricTypeRepository.
type MetricTypeRepository struct {
	store *Store
}

// Get returns the metric type, or nil when unknown.
func (r *MetricTypeRepository) Get(_ context.Context, code string) (*measurements.MetricType, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.metricTypes[code]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// List returns the catalog ordered by code.
func (r *MetricTypeRepository) List(_ context.Context) ([]measurements.MetricType, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]measurements.MetricType, 0, len(s.metricTypes))
	for _, t := range s.metricTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// Save inserts or replaces a metric type.
func (r *MetricTypeRepository) Save(_ context.Context, metricType *measurements.MetricType) error {
	if metricType == nil {
		return fmt.Errorf("%w: nil metric type", measurements.ErrValidation)
	}
	if err := metricType.Validate(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	s.metricTypes[metricType.Code] = *metricType
	s.mu.Unlock()
	return nil
}

// Delete removes an unreferenced metric type.
func (r *MetricTypeRepository) Delete(_ context.Context, code string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metricTypes[code]; !ok {
		return fmt.Errorf("%w: metric type %s", measurements.ErrNotFound, code)
	}
	for _, m := range s.measurements {
		if m.MetricCode == code {
			return fmt.Errorf("%w: %s", measurements.ErrMetricTypeInUse, code)
		}
	}
	for key := range s.subscriptions {
		if key.metricCode == code {
			return fmt.Errorf("%w: %s", measurements.ErrMetricTypeInUse, code)
		}
	}
	delete(s.metricTypes, code)
	return nil
}

func cloneSubscription(sub measurements.Subscription) *measurements.Subscription {
	out := sub
	if sub.Min != nil {
		v := *sub.Min
		out.Min = &v
	}
	if sub.Max != nil {
		v := *sub.Max
		out.Max = &v
	}
	return &out
}
