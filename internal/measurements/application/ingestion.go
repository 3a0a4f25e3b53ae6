package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	alerts "aquatracking/internal/alerts/domain"
	"aquatracking/internal/alerts/notify"
	biotopes "aquatracking/internal/biotopes/domain"
	measurements "aquatracking/internal/measurements/domain"
	"aquatracking/internal/observability/metrics"
)

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Cooldown suppresses repeated alerts for a (biotope, metric) pair.
type Cooldown interface {
	TryAcquire(biotopeID, metricCode string, ttl time.Duration) bool
	Release(biotopeID, metricCode string) bool
}

// AlertComposer renders the mail for a breach.
type AlertComposer interface {
	Compose(alert notify.Alert) (notify.Message, error)
}

// RecordCommand is a measurement submitted by a client.
type RecordCommand struct {
	BiotopeID  string
	MetricCode string
	Value      float64
	// MeasuredAt defaults to the current time when zero.
	MeasuredAt time.Time
}

// IngestionService persists measurements and raises threshold alerts.
type IngestionService struct {
	measurements  measurements.MeasurementRepository
	subscriptions measurements.SubscriptionRepository
	catalog       measurements.MetricTypeCatalog
	owners        biotopes.OwnerDirectory
	cooldown      Cooldown
	composer      AlertComposer
	dispatcher    notify.Dispatcher
	cooldownTTL   time.Duration
	clock         Clock
	logger        *log.Logger
}

// IngestionOption customizes the ingestion service.
type IngestionOption func(*IngestionService)

// WithClock assigns a clock.
func WithClock(clock Clock) IngestionOption {
	return func(s *IngestionService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithCooldownTTL sets how long a sent alert suppresses the next one.
func WithCooldownTTL(ttl time.Duration) IngestionOption {
	return func(s *IngestionService) {
		if ttl > 0 {
			s.cooldownTTL = ttl
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger *log.Logger) IngestionOption {
	return func(s *IngestionService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithComposer overrides the default alert composer.
func WithComposer(composer AlertComposer) IngestionOption {
	return func(s *IngestionService) {
		if composer != nil {
			s.composer = composer
		}
	}
}

// NewIngestionService constructs an ingestion service.
func NewIngestionService(
	measurementRepo measurements.MeasurementRepository,
	subscriptionRepo measurements.SubscriptionRepository,
	catalog measurements.MetricTypeCatalog,
	owners biotopes.OwnerDirectory,
	cooldown Cooldown,
	dispatcher notify.Dispatcher,
	opts ...IngestionOption,
) (*IngestionService, error) {
	if measurementRepo == nil || subscriptionRepo == nil {
		return nil, errors.New("ingestion: nil repository")
	}
	if catalog == nil {
		return nil, errors.New("ingestion: nil metric catalog")
	}
	if owners == nil {
		return nil, errors.New("ingestion: nil owner directory")
	}
	if cooldown == nil {
		return nil, errors.New("ingestion: nil cooldown tracker")
	}
	if dispatcher == nil {
		return nil, errors.New("ingestion: nil dispatcher")
	}
	service := &IngestionService{
		measurements:  measurementRepo,
		subscriptions: subscriptionRepo,
		catalog:       catalog,
		owners:        owners,
		cooldown:      cooldown,
		dispatcher:    dispatcher,
		cooldownTTL:   24 * time.Hour,
		clock:         systemClock{},
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	if service.composer == nil {
		composer, err := notify.NewComposer()
		if err != nil {
			return nil, err
		}
		service.composer = composer
	}
	return service, nil
}

// RecordMeasurement validates and stores a measurement, then evaluates it
// against the biotope's subscription. Only failures up to and including the
// insert are returned; the alerting step logs its failures.
func (s *IngestionService) RecordMeasurement(ctx context.Context, cmd RecordCommand) (*measurements.Measurement, error) {
	start := time.Now()
	m, err := s.record(ctx, cmd)
	if err != nil {
		metrics.ObserveIngest(metrics.ResultError, time.Since(start))
		metrics.IncIngestError(ingestErrorReason(err))
		return nil, err
	}
	s.evaluate(ctx, *m)
	metrics.ObserveIngest(metrics.ResultSuccess, time.Since(start))
	return m, nil
}

func (s *IngestionService) record(ctx context.Context, cmd RecordCommand) (*measurements.Measurement, error) {
	if cmd.BiotopeID == "" {
		return nil, fmt.Errorf("%w: empty biotope id", measurements.ErrValidation)
	}
	metricType, err := s.catalog.Get(ctx, cmd.MetricCode)
	if err != nil {
		return nil, fmt.Errorf("ingestion: load metric type: %w", err)
	}
	if metricType == nil {
		return nil, fmt.Errorf("%w: %s", measurements.ErrUnknownMetricType, cmd.MetricCode)
	}
	m := &measurements.Measurement{
		BiotopeID:  cmd.BiotopeID,
		MetricCode: metricType.Code,
		Value:      cmd.Value,
		MeasuredAt: cmd.MeasuredAt,
	}
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = s.clock.Now()
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := s.measurements.Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("ingestion: insert measurement: %w", err)
	}
	return m, nil
}

// evaluate runs after the measurement is persisted and never fails the call.
func (s *IngestionService) evaluate(ctx context.Context, m measurements.Measurement) {
	acquired := false
	defer func() {
		if r := recover(); r != nil {
			if acquired {
				s.cooldown.Release(m.BiotopeID, m.MetricCode)
			}
			metrics.IncAlertOutcome(metrics.AlertFailed)
			s.logger.Printf("ingestion: alert evaluation panic biotope=%s metric=%s: %v", m.BiotopeID, m.MetricCode, r)
		}
	}()

	sub, err := s.subscriptions.Get(ctx, m.BiotopeID, m.MetricCode)
	if err != nil {
		metrics.IncAlertOutcome(metrics.AlertFailed)
		s.logger.Printf("ingestion: load subscription biotope=%s metric=%s: %v", m.BiotopeID, m.MetricCode, err)
		return
	}
	if sub == nil {
		return
	}

	decision := alerts.Evaluate(*sub, m.Value)
	if !decision.Breached {
		if s.cooldown.Release(m.BiotopeID, m.MetricCode) {
			metrics.IncAlertOutcome(metrics.AlertReleased)
			s.logger.Printf("ingestion: value back in range, cooldown released biotope=%s metric=%s", m.BiotopeID, m.MetricCode)
		}
		return
	}

	metrics.IncAlertOutcome(metrics.AlertBreached)
	if !s.cooldown.TryAcquire(m.BiotopeID, m.MetricCode, s.cooldownTTL) {
		metrics.IncAlertOutcome(metrics.AlertSuppressed)
		s.logger.Printf("ingestion: alert suppressed by cooldown biotope=%s metric=%s value=%v", m.BiotopeID, m.MetricCode, m.Value)
		return
	}
	acquired = true

	if err := s.sendAlert(ctx, m, decision); err != nil {
		s.cooldown.Release(m.BiotopeID, m.MetricCode)
		metrics.IncAlertOutcome(metrics.AlertFailed)
		s.logger.Printf("ingestion: alert not sent biotope=%s metric=%s: %v", m.BiotopeID, m.MetricCode, err)
		return
	}
	metrics.IncAlertOutcome(metrics.AlertDispatched)
	s.logger.Printf("ingestion: alert dispatched biotope=%s metric=%s direction=%s value=%v", m.BiotopeID, m.MetricCode, decision.Direction, m.Value)
}

func (s *IngestionService) sendAlert(ctx context.Context, m measurements.Measurement, decision alerts.Decision) error {
	owner, err := s.owners.GetBiotopeOwner(ctx, m.BiotopeID)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if owner == nil {
		return errors.New("biotope owner not found")
	}
	metricType, err := s.catalog.Get(ctx, m.MetricCode)
	if err != nil {
		return fmt.Errorf("load metric type: %w", err)
	}
	alert := notify.Alert{Owner: *owner, Measurement: m, Decision: decision}
	if metricType != nil {
		alert.Metric = *metricType
	}
	msg, err := s.composer.Compose(alert)
	if err != nil {
		return fmt.Errorf("compose: %w", err)
	}
	return s.dispatcher.Send(ctx, msg)
}

// ListMeasurements returns measurements of a biotope. A zero To means now and
// a zero From means DefaultQueryWindow before To.
func (s *IngestionService) ListMeasurements(ctx context.Context, q measurements.MeasurementQuery) ([]measurements.Measurement, error) {
	normalized, err := q.Normalize(s.clock.Now())
	if err != nil {
		return nil, err
	}
	for _, code := range normalized.MetricCodes {
		if err := s.ensureMetric(ctx, code); err != nil {
			return nil, err
		}
	}
	return s.measurements.Query(ctx, normalized)
}

// LastMeasurement returns the latest measurement of the pair, or nil.
func (s *IngestionService) LastMeasurement(ctx context.Context, biotopeID, metricCode string) (*measurements.Measurement, error) {
	if err := s.ensureMetric(ctx, metricCode); err != nil {
		return nil, err
	}
	return s.measurements.Last(ctx, biotopeID, metricCode)
}

// GetMeasurement returns one measurement of the biotope.
func (s *IngestionService) GetMeasurement(ctx context.Context, biotopeID, id string) (*measurements.Measurement, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty measurement id", measurements.ErrValidation)
	}
	m, err := s.measurements.Get(ctx, biotopeID, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: measurement %s", measurements.ErrNotFound, id)
	}
	return m, nil
}

// DeleteMeasurement removes a measurement of the biotope.
func (s *IngestionService) DeleteMeasurement(ctx context.Context, biotopeID, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty measurement id", measurements.ErrValidation)
	}
	return s.measurements.Delete(ctx, biotopeID, id)
}

func (s *IngestionService) ensureMetric(ctx context.Context, code string) error {
	metricType, err := s.catalog.Get(ctx, code)
	if err != nil {
		return err
	}
	if metricType == nil {
		return fmt.Errorf("%w: %s", measurements.ErrUnknownMetricType, code)
	}
	return nil
}

func ingestErrorReason(err error) string {
	switch {
	case errors.Is(err, measurements.ErrNotFound):
		return "not_found"
	case errors.Is(err, measurements.ErrValidation):
		return "validation"
	case errors.Is(err, measurements.ErrConflict):
		return "conflict"
	default:
		return "storage"
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
