package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	measurements "aquatracking/internal/measurements/domain"
)

// MeasurementRepository is a Postgres repository for measurements.
type MeasurementRepository struct {
	db DBTX
}

// NewMeasurementRepository constructs a repository.
func NewMeasurementRepository(db DBTX) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// Insert stores a measurement. An unknown metric code violates the
// measurement_types foreign key and maps to ErrValidation.
func (r *MeasurementRepository) Insert(ctx context.Context, m *measurements.Measurement) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if m == nil {
		return errors.New("measurement repo: nil measurement")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = time.Now()
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO measurements (id, biotope_id, measurement_type_code, value, measured_at)
VALUES ($1, $2, $3, $4, $5)`, m.ID, m.BiotopeID, m.MetricCode, m.Value, m.MeasuredAt)
	return mapError(err, measurements.ErrValidation)
}

// Query returns measurements in [From, To] ordered by measured_at.
func (r *MeasurementRepository) Query(ctx context.Context, q measurements.MeasurementQuery) ([]measurements.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	var b strings.Builder
	b.WriteString(`
SELECT id, biotope_id, measurement_type_code, value, measured_at
FROM measurements
WHERE biotope_id = $1 AND measured_at >= $2 AND measured_at <= $3`)
	args := []any{q.BiotopeID, q.From.UTC(), q.To.UTC()}
	if len(q.MetricCodes) > 0 {
		placeholders := make([]string, 0, len(q.MetricCodes))
		for _, code := range q.MetricCodes {
			args = append(args, code)
			placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
		}
		fmt.Fprintf(&b, " AND measurement_type_code IN (%s)", strings.Join(placeholders, ", "))
	}
	b.WriteString("\nORDER BY measured_at ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	result := make([]measurements.Measurement, 0)
	for rows.Next() {
		var m measurements.Measurement
		if err := rows.Scan(&m.ID, &m.BiotopeID, &m.MetricCode, &m.Value, &m.MeasuredAt); err != nil {
			return nil, err
		}
		m.MeasuredAt = m.MeasuredAt.UTC()
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns the measurement if it belongs to the biotope, or nil.
func (r *MeasurementRepository) Get(ctx context.Context, biotopeID, id string) (*measurements.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	var m measurements.Measurement
	err := r.db.QueryRowContext(ctx, `
SELECT id, biotope_id, measurement_type_code, value, measured_at
FROM measurements
WHERE id = $1 AND biotope_id = $2`, id, biotopeID).Scan(&m.ID, &m.BiotopeID, &m.MetricCode, &m.Value, &m.MeasuredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, nil)
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	return &m, nil
}

// Last returns the most recent measurement of the pair, or nil.
func (r *MeasurementRepository) Last(ctx context.Context, biotopeID, metricCode string) (*measurements.Measurement, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("measurement repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, biotope_id, measurement_type_code, value, measured_at
FROM measurements
WHERE biotope_id = $1 AND measurement_type_code = $2
ORDER BY measured_at DESC
LIMIT 1`, biotopeID, metricCode)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	var m measurements.Measurement
	if err := rows.Scan(&m.ID, &m.BiotopeID, &m.MetricCode, &m.Value, &m.MeasuredAt); err != nil {
		return nil, err
	}
	m.MeasuredAt = m.MeasuredAt.UTC()
	return &m, nil
}

// Delete removes a measurement owned by the biotope.
func (r *MeasurementRepository) Delete(ctx context.Context, biotopeID, id string) error {
	if r == nil || r.db == nil {
		return errors.New("measurement repo: nil db")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: measurement %s", measurements.ErrNotFound, id)
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM measurements WHERE id = $1 AND biotope_id = $2`, id, biotopeID)
	if err != nil {
		return mapError(err, nil)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: measurement %s", measurements.ErrNotFound, id)
	}
	return nil
}
