package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	biotopes "aquatracking/internal/biotopes/domain"
)

const (
	defaultBiotopesTable = "biotopes"
	defaultUsersTable    = "users"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BiotopeRepository reads biotopes and their owners from Postgres.
type BiotopeRepository struct {
	db         DBTX
	table      string
	usersTable string
}

// BiotopeOption configures the repository.
type BiotopeOption func(*BiotopeRepository)

// WithTables overrides the default table names.
func WithTables(biotopesTable, usersTable string) BiotopeOption {
	return func(repo *BiotopeRepository) {
		if biotopesTable != "" {
			repo.table = biotopesTable
		}
		if usersTable != "" {
			repo.usersTable = usersTable
		}
	}
}

// NewBiotopeRepository constructs a repository.
func NewBiotopeRepository(db DBTX, opts ...BiotopeOption) *BiotopeRepository {
	repo := &BiotopeRepository{db: db, table: defaultBiotopesTable, usersTable: defaultUsersTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Get loads a biotope by id.
func (r *BiotopeRepository) Get(ctx context.Context, id string) (*biotopes.Biotope, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("biotope repo: nil db")
	}
	if id == "" {
		return nil, errors.New("biotope repo: empty id")
	}
	// ids are uuid columns; anything else cannot match a row
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	var (
		biotope biotopes.Biotope
		kind    string
	)
	if err := r.db.QueryRowContext(ctx, biotopeQuery(r.table), id).Scan(
		&biotope.ID,
		&biotope.OwnerID,
		&biotope.Name,
		&kind,
		&biotope.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	biotope.Kind = biotopes.Kind(kind)
	biotope.CreatedAt = biotope.CreatedAt.UTC()
	return &biotope, nil
}

// GetBiotopeOwner resolves the owner email of a biotope.
func (r *BiotopeRepository) GetBiotopeOwner(ctx context.Context, biotopeID string) (*biotopes.Owner, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("biotope repo: nil db")
	}
	if biotopeID == "" {
		return nil, errors.New("biotope repo: empty id")
	}
	if _, err := uuid.Parse(biotopeID); err != nil {
		return nil, nil
	}

	var (
		owner biotopes.Owner
		kind  string
	)
	if err := r.db.QueryRowContext(ctx, ownerQuery(r.table, r.usersTable), biotopeID).Scan(
		&owner.UserID,
		&owner.Email,
		&owner.BiotopeID,
		&owner.BiotopeName,
		&kind,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	owner.BiotopeKind = biotopes.Kind(kind)
	return &owner, nil
}

// Archived biotopes are invisible to both lookups.
func biotopeQuery(table string) string {
	return fmt.Sprintf(`
SELECT id, user_id, name, type, created_at
FROM %s
WHERE id = $1 AND archived_at IS NULL
LIMIT 1`, table)
}

func ownerQuery(table, usersTable string) string {
	return fmt.Sprintf(`
SELECT u.id, u.email, b.id, b.name, b.type
FROM %s b
JOIN %s u ON u.id = b.user_id
WHERE b.id = $1 AND b.archived_at IS NULL
LIMIT 1`, table, usersTable)
}
