package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	measurements "aquatracking/internal/measurements/domain"
)

// MetricTypeRepository is a Postgres repository for the metric catalog.
type MetricTypeRepository struct {
	db DBTX
}

// NewMetricTypeRepository constructs a repository.
func NewMetricTypeRepository(db DBTX) *MetricTypeRepository {
	return &MetricTypeRepository{db: db}
}

// Get loads a metric type, or nil when unknown.
func (r *MetricTypeRepository) Get(ctx context.Context, code string) (*measurements.MetricType, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("metric type repo: nil db")
	}
	var t measurements.MetricType
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, `
SELECT code, name, unit, description FROM measurement_types WHERE code = $1`, code).
		Scan(&t.Code, &t.Name, &t.Unit, &description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Description = description.String
	return &t, nil
}

// List returns the catalog ordered by code.
func (r *MetricTypeRepository) List(ctx context.Context) ([]measurements.MetricType, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("metric type repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT code, name, unit, description FROM measurement_types ORDER BY code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]measurements.MetricType, 0)
	for rows.Next() {
		var t measurements.MetricType
		var description sql.NullString
		if err := rows.Scan(&t.Code, &t.Name, &t.Unit, &description); err != nil {
			return nil, err
		}
		t.Description = description.String
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a metric type.
func (r *MetricTypeRepository) Save(ctx context.Context, metricType *measurements.MetricType) error {
	if r == nil || r.db == nil {
		return errors.New("metric type repo: nil db")
	}
	if metricType == nil {
		return errors.New("metric type repo: nil metric type")
	}
	if err := metricType.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO measurement_types (code, name, unit, description)
VALUES ($1, $2, $3, $4)
ON CONFLICT (code) DO UPDATE
SET name = EXCLUDED.name, unit = EXCLUDED.unit, description = EXCLUDED.description`,
		metricType.Code, metricType.Name, metricType.Unit, metricType.Description)
	return mapError(err, nil)
}

// Delete removes a metric type. Referenced codes fail the foreign keys of
// measurements and measurement_subscriptions.
func (r *MetricTypeRepository) Delete(ctx context.Context, code string) error {
	if r == nil || r.db == nil {
		return errors.New("metric type repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM measurement_types WHERE code = $1`, code)
	if err != nil {
		return mapError(err, measurements.ErrMetricTypeInUse)
	}
	return expectOne(res, fmt.Sprintf("metric type %s", code))
}
