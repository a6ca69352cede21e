package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

// PersonRepository provides database access for people and their role grants.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository creates a new instance of PersonRepository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// FindByID returns a person with every role grant, ended ones included.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	const query = `SELECT id, full_name, email, phone, birth_date, status, created_at FROM persons WHERE id = $1 LIMIT 1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find person by id: %w", err)
	}
	grants, err := r.ListGrants(ctx, id)
	if err != nil {
		return nil, err
	}
	person.Grants = grants
	return &person, nil
}

// ListGrants returns the person's role grants ordered by start date.
func (r *PersonRepository) ListGrants(ctx context.Context, personID string) ([]models.RoleGrant, error) {
	const query = `SELECT id, person_id, kind, start_date, end_date FROM role_grants WHERE person_id = $1 ORDER BY start_date ASC`
	var grants []models.RoleGrant
	if err := r.db.SelectContext(ctx, &grants, query, personID); err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	return grants, nil
}

// FindGrant returns a single role grant.
func (r *PersonRepository) FindGrant(ctx context.Context, grantID string) (*models.RoleGrant, error) {
	const query = `SELECT id, person_id, kind, start_date, end_date FROM role_grants WHERE id = $1 LIMIT 1`
	var grant models.RoleGrant
	if err := r.db.GetContext(ctx, &grant, query, grantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find role grant: %w", err)
	}
	return &grant, nil
}

// Create inserts a new person.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	if person.CreatedAt.IsZero() {
		person.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO persons (id, full_name, email, phone, birth_date, status, created_at) VALUES (:id, :full_name, :email, :phone, :birth_date, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// CreateGrant inserts a role grant while holding the person row, so two grants
// of the same kind cannot be opened concurrently. The open-grant unique index
// backs this up.
func (r *PersonRepository) CreateGrant(ctx context.Context, grant *models.RoleGrant, check func(status models.PersonStatus, existing []models.RoleGrant) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grant transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.PersonStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM persons WHERE id = $1 FOR UPDATE`, grant.PersonID); err != nil {
		if err == sql.ErrNoRows {
			return err
		}
		return fmt.Errorf("lock person: %w", err)
	}
	var existing []models.RoleGrant
	if err = tx.SelectContext(ctx, &existing, `SELECT id, person_id, kind, start_date, end_date FROM role_grants WHERE person_id = $1`, grant.PersonID); err != nil {
		return fmt.Errorf("list role grants: %w", err)
	}
	if err = check(status, existing); err != nil {
		return err
	}

	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	const query = `INSERT INTO role_grants (id, person_id, kind, start_date, end_date) VALUES (:id, :person_id, :kind, :start_date, :end_date)`
	if _, err = tx.NamedExecContext(ctx, query, grant); err != nil {
		return fmt.Errorf("create role grant: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit role grant: %w", err)
	}
	return nil
}

// EndGrant sets the end date of a grant.
func (r *PersonRepository) EndGrant(ctx context.Context, grantID string, end time.Time) error {
	const query = `UPDATE role_grants SET end_date = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, grantID, end)
	if err != nil {
		return fmt.Errorf("end role grant: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus moves a person to a new lifecycle state.
func (r *PersonRepository) UpdateStatus(ctx context.Context, id string, status models.PersonStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE persons SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update person status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
