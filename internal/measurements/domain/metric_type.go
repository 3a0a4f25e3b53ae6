package measurements

import (
	"context"
	"fmt"
)

// MetricType is a catalog entry describing a measurable quantity.
type MetricType struct {
	Code        string `json:"code" yaml:"code"`
	Name        string `json:"name" yaml:"name"`
	Unit        string `json:"unit" yaml:"unit"`
	Description string `json:"description" yaml:"description"`
}

// Validate checks metric type invariants.
func (t MetricType) Validate() error {
	if t.Code == "" {
		return fmt.Errorf("%w: empty metric code", ErrValidation)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: empty metric name for %s", ErrValidation, t.Code)
	}
	return nil
}

// MetricTypeCatalog reads the metric type catalog.
type MetricTypeCatalog interface {
	// Get returns nil when the code is unknown.
	Get(ctx context.Context, code string) (*MetricType, error)
	List(ctx context.Context) ([]MetricType, error)
}

// MetricTypeRepository manages the catalog.
type MetricTypeRepository interface {
	MetricTypeCatalog
	Save(ctx context.Context, metricType *MetricType) error
	// Delete fails with ErrMetricTypeInUse when measurements or subscriptions reference the code.
	Delete(ctx context.Context, code string) error
}
