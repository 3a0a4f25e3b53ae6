package measurements

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a missing measurement, subscription or metric type.
	ErrNotFound = errors.New("measurements: not found")
	// ErrConflict indicates a duplicate subscription for a biotope metric.
	ErrConflict = errors.New("measurements: already exists")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("measurements: invalid input")
	// ErrMetricTypeInUse is returned when deleting a referenced metric type.
	ErrMetricTypeInUse = errors.New("measurements: metric type in use")
	// ErrUnknownMetricType is returned when a metric code is not in the catalog.
	ErrUnknownMetricType = fmt.Errorf("%w: unknown metric type", ErrNotFound)
)
