package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	measurements "aquatracking/internal/measurements/domain"
)

// SubscriptionRepository is a Postgres repository for measurement subscriptions.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository constructs a repository.
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `biotope_id, measurement_type_code, "order", min_value, max_value, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (measurements.Subscription, error) {
	var sub measurements.Subscription
	var minValue, maxValue sql.NullFloat64
	if err := row.Scan(
		&sub.BiotopeID,
		&sub.MetricCode,
		&sub.Order,
		&minValue,
		&maxValue,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return sub, err
	}
	sub.Min = floatPtr(minValue)
	sub.Max = floatPtr(maxValue)
	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.UpdatedAt = sub.UpdatedAt.UTC()
	return sub, nil
}

// Get loads the subscription of the pair, or nil.
func (r *SubscriptionRepository) Get(ctx context.Context, biotopeID, metricCode string) (*measurements.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+subscriptionColumns+`
FROM measurement_subscriptions
WHERE biotope_id = $1 AND measurement_type_code = $2`, biotopeID, metricCode)
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError(err, nil)
	}
	return &sub, nil
}

// ListByBiotope returns the biotope's subscriptions ordered by order.
func (r *SubscriptionRepository) ListByBiotope(ctx context.Context, biotopeID string) ([]measurements.Subscription, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("subscription repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+subscriptionColumns+`
FROM measurement_subscriptions
WHERE biotope_id = $1
ORDER BY "order" ASC, measurement_type_code ASC`, biotopeID)
	if err != nil {
		return nil, mapError(err, nil)
	}
	defer rows.Close()

	result := make([]measurements.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// MaxOrder returns the highest order used by the biotope.
func (r *SubscriptionRepository) MaxOrder(ctx context.Context, biotopeID string) (int, bool, error) {
	if r == nil || r.db == nil {
		return 0, false, errors.New("subscription repo: nil db")
	}
	var order sql.NullInt64
	err := r.db.QueryRowContext(ctx, `
SELECT MAX("order") FROM measurement_subscriptions WHERE biotope_id = $1`, biotopeID).Scan(&order)
	if err != nil {
		return 0, false, mapError(err, nil)
	}
	if !order.Valid {
		return 0, false, nil
	}
	return int(order.Int64), true, nil
}

// Create inserts a subscription.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *measurements.Subscription) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	if sub == nil {
		return errors.New("subscription repo: nil subscription")
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
INSERT INTO measurement_subscriptions (`+subscriptionColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sub.BiotopeID, sub.MetricCode, sub.Order, nullFloat(sub.Min), nullFloat(sub.Max),
		sub.CreatedAt, sub.UpdatedAt)
	return mapError(err, measurements.ErrValidation)
}

// Update overwrites order and thresholds of an existing subscription.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *measurements.Subscription) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	if sub == nil {
		return errors.New("subscription repo: nil subscription")
	}
	sub.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE measurement_subscriptions
SET "order" = $3, min_value = $4, max_value = $5, updated_at = $6
WHERE biotope_id = $1 AND measurement_type_code = $2`,
		sub.BiotopeID, sub.MetricCode, sub.Order, nullFloat(sub.Min), nullFloat(sub.Max), sub.UpdatedAt)
	if err != nil {
		return mapError(err, nil)
	}
	return expectOne(res, fmt.Sprintf("subscription %s/%s", sub.BiotopeID, sub.MetricCode))
}

// Delete removes a subscription.
func (r *SubscriptionRepository) Delete(ctx context.Context, biotopeID, metricCode string) error {
	if r == nil || r.db == nil {
		return errors.New("subscription repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, `
DELETE FROM measurement_subscriptions WHERE biotope_id = $1 AND measurement_type_code = $2`, biotopeID, metricCode)
	if err != nil {
		return mapError(err, nil)
	}
	return expectOne(res, fmt.Sprintf("subscription %s/%s", biotopeID, metricCode))
}

func expectOne(res sql.Result, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", measurements.ErrNotFound, what)
	}
	return nil
}
