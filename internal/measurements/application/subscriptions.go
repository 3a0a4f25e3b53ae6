package application

import (
	"context"
	"errors"
	"fmt"

	measurements "aquatracking/internal/measurements/domain"
)

// CreateSubscriptionCommand subscribes a biotope to alerts on one metric.
type CreateSubscriptionCommand struct {
	BiotopeID  string
	MetricCode string
	// Order defaults to one past the biotope's highest order, or 0.
	Order *int
	Min   *float64
	Max   *float64
}

// SubscriptionView is a subscription with its metric type and last value.
type SubscriptionView struct {
	measurements.Subscription
	MetricType      measurements.MetricType   `json:"measurement_type"`
	LastMeasurement *measurements.Measurement `json:"last_measurement"`
}

// SubscriptionService manages measurement subscriptions.
type SubscriptionService struct {
	subscriptions measurements.SubscriptionRepository
	measurements  measurements.MeasurementRepository
	catalog       measurements.MetricTypeCatalog
}

// NewSubscriptionService constructs a subscription service.
func NewSubscriptionService(subscriptionRepo measurements.SubscriptionRepository, measurementRepo measurements.MeasurementRepository, catalog measurements.MetricTypeCatalog) (*SubscriptionService, error) {
	if subscriptionRepo == nil || measurementRepo == nil {
		return nil, errors.New("subscriptions: nil repository")
	}
	if catalog == nil {
		return nil, errors.New("subscriptions: nil metric catalog")
	}
	return &SubscriptionService{
		subscriptions: subscriptionRepo,
		measurements:  measurementRepo,
		catalog:       catalog,
	}, nil
}

// Create stores a new subscription. A duplicate pair fails with ErrConflict.
func (s *SubscriptionService) Create(ctx context.Context, cmd CreateSubscriptionCommand) (*measurements.Subscription, error) {
	metricType, err := s.metricType(ctx, cmd.MetricCode)
	if err != nil {
		return nil, err
	}
	sub := &measurements.Subscription{
		BiotopeID:  cmd.BiotopeID,
		MetricCode: metricType.Code,
		Min:        copyFloat(cmd.Min),
		Max:        copyFloat(cmd.Max),
	}
	if cmd.Order != nil {
		sub.Order = *cmd.Order
	} else {
		highest, ok, err := s.subscriptions.MaxOrder(ctx, cmd.BiotopeID)
		if err != nil {
			return nil, err
		}
		if ok {
			sub.Order = highest + 1
		}
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Update applies a partial update to an existing subscription.
func (s *SubscriptionService) Update(ctx context.Context, biotopeID, metricCode string, patch measurements.SubscriptionPatch) (*measurements.Subscription, error) {
	if _, err := s.metricType(ctx, metricCode); err != nil {
		return nil, err
	}
	sub, err := s.subscriptions.Get(ctx, biotopeID, metricCode)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: subscription %s/%s", measurements.ErrNotFound, biotopeID, metricCode)
	}
	patch.Apply(sub)
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.subscriptions.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete removes a subscription.
func (s *SubscriptionService) Delete(ctx context.Context, biotopeID, metricCode string) error {
	if _, err := s.metricType(ctx, metricCode); err != nil {
		return err
	}
	return s.subscriptions.Delete(ctx, biotopeID, metricCode)
}

// Get returns a subscription or ErrNotFound.
func (s *SubscriptionService) Get(ctx context.Context, biotopeID, metricCode string) (*measurements.Subscription, error) {
	sub, err := s.subscriptions.Get(ctx, biotopeID, metricCode)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, fmt.Errorf("%w: subscription %s/%s", measurements.ErrNotFound, biotopeID, metricCode)
	}
	return sub, nil
}

// List returns the biotope's subscriptions ordered by order.
func (s *SubscriptionService) List(ctx context.Context, biotopeID string) ([]measurements.Subscription, error) {
	return s.subscriptions.ListByBiotope(ctx, biotopeID)
}

// ListWithLastMeasurement returns each subscription with its metric type and
// most recent measurement.
func (s *SubscriptionService) ListWithLastMeasurement(ctx context.Context, biotopeID string) ([]SubscriptionView, error) {
	subs, err := s.subscriptions.ListByBiotope(ctx, biotopeID)
	if err != nil {
		return nil, err
	}
	views := make([]SubscriptionView, 0, len(subs))
	for _, sub := range subs {
		view := SubscriptionView{Subscription: sub}
		metricType, err := s.catalog.Get(ctx, sub.MetricCode)
		if err != nil {
			return nil, err
		}
		if metricType != nil {
			view.MetricType = *metricType
		}
		last, err := s.measurements.Last(ctx, biotopeID, sub.MetricCode)
		if err != nil {
			return nil, err
		}
		view.LastMeasurement = last
		views = append(views, view)
	}
	return views, nil
}

func (s *SubscriptionService) metricType(ctx context.Context, code string) (*measurements.MetricType, error) {
	metricType, err := s.catalog.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if metricType == nil {
		return nil, fmt.Errorf("%w: %s", measurements.ErrUnknownMetricType, code)
	}
	return metricType, nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
