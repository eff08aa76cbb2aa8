package principal

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internlink/auth-service/internal/core"
)

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
	)
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, "sqlmock")
	return NewRepository(db), mock
}

func studentRows(id int64, email string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "first_name", "last_name", "created_at",
	}).AddRow(id, email, "$argon2id$...", "Ada", "Lovelace", time.Now())
}

func TestRepository_CreateStudent(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO students`).
		WithArgs("a@x.com", "$argon2id$...", "Ada", "Lovelace").
		WillReturnRows(studentRows(1, "a@x.com"))

	p, err := repo.Create(context.Background(), NewPrincipal{
		Kind:         KindStudent,
		Email:        "a@x.com",
		PasswordHash: "$argon2id$...",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	})
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: KindStudent, ID: 1}, p.Ref)
	assert.Equal(t, "Ada Lovelace", p.DisplayName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateStudent_DuplicateEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO students`).
		WithArgs("a@x.com", "$argon2id$...", "Ada", "Lovelace").
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "students_email_key",
		})

	_, err := repo.Create(context.Background(), NewPrincipal{
		Kind:         KindStudent,
		Email:        "a@x.com",
		PasswordHash: "$argon2id$...",
		FirstName:    "Ada",
		LastName:     "Lovelace",
	})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CreateCompany(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`INSERT INTO companies`).
		WithArgs("hr@acme.com", "$argon2id$...", "Acme Corp").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "password_hash", "name", "created_at",
		}).AddRow(int64(3), "hr@acme.com", "$argon2id$...", "Acme Corp",
			time.Now()))

	p, err := repo.Create(context.Background(), NewPrincipal{
		Kind:         KindCompany,
		Email:        "hr@acme.com",
		PasswordHash: "$argon2id$...",
		CompanyName:  "Acme Corp",
	})
	require.NoError(t, err)
	assert.Equal(t, Ref{Kind: KindCompany, ID: 3}, p.Ref)
	assert.Equal(t, "Acme Corp", p.DisplayName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Create_InvalidKind(t *testing.T) {
	repo, mock := newMockRepository(t)

	_, err := repo.Create(context.Background(), NewPrincipal{Kind: "robot"})
	assert.Error(t, err)

	// No SQL for an unknown kind.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByEmail(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT (.+) FROM students\s+WHERE email = \$1`).
		WithArgs("a@x.com").
		WillReturnRows(studentRows(7, "a@x.com"))

	p, err := repo.GetByEmail(context.Background(), KindStudent, "a@x.com")
	require.NoError(t, err)
	assert.EqualValues(t, 7, p.Ref.ID)
	assert.Equal(t, "a@x.com", p.Email)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByEmail_NotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT (.+) FROM admins\s+WHERE email = \$1`).
		WithArgs("nobody@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), KindAdmin, "nobody@x.com")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_GetByRef(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT (.+) FROM companies\s+WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "email", "password_hash", "name", "created_at",
		}).AddRow(int64(3), "hr@acme.com", "$argon2id$...", "Acme Corp",
			time.Now()))

	p, err := repo.GetByRef(
		context.Background(),
		Ref{Kind: KindCompany, ID: 3},
	)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", p.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
