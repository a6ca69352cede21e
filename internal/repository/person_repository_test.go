package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-ledger-api/internal/models"
	appErrors "github.com/noah-isme/institute-ledger-api/pkg/errors"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var grantColumns = []string{"id", "person_id", "kind", "start_date", "end_date"}

func TestPersonRepositoryFindByIDLoadsGrants(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, full_name, email, phone, birth_date, status, created_at FROM persons WHERE id = $1 LIMIT 1")).
		WithArgs("person-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "email", "phone", "birth_date", "status", "created_at"}).
			AddRow("person-1", "Carla Ruiz", "carla@example.com", nil, nil, "ACTIVE", now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, person_id, kind, start_date, end_date FROM role_grants WHERE person_id = $1 ORDER BY start_date ASC")).
		WithArgs("person-1").
		WillReturnRows(sqlmock.NewRows(grantColumns).
			AddRow("grant-1", "person-1", "PROFESSOR", now.AddDate(-1, 0, 0), nil).
			AddRow("grant-2", "person-1", "STUDENT", now.AddDate(-2, 0, 0), now.AddDate(-1, 0, 0)))

	person, err := repo.FindByID(context.Background(), "person-1")
	require.NoError(t, err)
	assert.Equal(t, models.PersonActive, person.Status)
	require.Len(t, person.Grants, 2)

	grant, ok := person.ActiveGrant(models.RoleProfessor, now)
	assert.True(t, ok)
	assert.Equal(t, "grant-1", grant.ID)
	_, ok = person.ActiveGrant(models.RoleStudent, now)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectQuery("FROM persons WHERE id").WillReturnError(sql.ErrNoRows)
	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPersonRepositoryCreateGrant(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM persons WHERE id = $1 FOR UPDATE")).
		WithArgs("person-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ACTIVE"))
	mock.ExpectQuery("FROM role_grants WHERE person_id").
		WillReturnRows(sqlmock.NewRows(grantColumns))
	mock.ExpectExec("INSERT INTO role_grants").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	grant := &models.RoleGrant{PersonID: "person-1", Kind: models.RoleStudent, StartDate: time.Now()}
	var seen models.PersonStatus
	err := repo.CreateGrant(context.Background(), grant, func(status models.PersonStatus, existing []models.RoleGrant) error {
		seen = status
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.PersonActive, seen)
	assert.NotEmpty(t, grant.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryCreateGrantCheckFails(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM persons").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ACTIVE"))
	mock.ExpectQuery("FROM role_grants WHERE person_id").
		WillReturnRows(sqlmock.NewRows(grantColumns).AddRow("grant-1", "person-1", "STUDENT", time.Now(), nil))
	mock.ExpectRollback()

	err := repo.CreateGrant(context.Background(), &models.RoleGrant{PersonID: "person-1", Kind: models.RoleStudent}, func(models.PersonStatus, []models.RoleGrant) error {
		return appErrors.Clone(appErrors.ErrValidation, "already a student")
	})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryEndGrantMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE role_grants SET end_date = $2 WHERE id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.EndGrant(context.Background(), "missing", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersonRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPersonRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE persons SET status = $2 WHERE id = $1`)).
		WithArgs("p-1", models.PersonInactive).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateStatus(context.Background(), "p-1", models.PersonInactive))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE persons SET status = $2 WHERE id = $1`)).
		WithArgs("ghost", models.PersonActive).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateStatus(context.Background(), "ghost", models.PersonActive)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, mock.ExpectationsWereMet())
}
