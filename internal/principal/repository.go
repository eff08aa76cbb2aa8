package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/internlink/auth-service/internal/core"
)

type Repository interface {
	Create(ctx context.Context, np NewPrincipal) (*Principal, error)
	GetByEmail(ctx context.Context, kind Kind, email string) (*Principal, error)
	GetByRef(ctx context.Context, ref Ref) (*Principal, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Create(
	ctx context.Context,
	np NewPrincipal,
) (*Principal, error) {
	switch np.Kind {
	case KindStudent:
		return r.createStudent(ctx, np)
	case KindCompany:
		return r.createCompany(ctx, np)
	case KindAdmin:
		return r.createAdmin(ctx, np)
	default:
		return nil, fmt.Errorf("create principal: invalid kind %q", np.Kind)
	}
}

func (r *repository) createStudent(
	ctx context.Context,
	np NewPrincipal,
) (*Principal, error) {
	query := `
		INSERT INTO students (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, first_name, last_name, created_at`

	var row studentRow
	err := r.db.GetContext(ctx, &row, query,
		np.Email,
		np.PasswordHash,
		np.FirstName,
		np.LastName,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("create student: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create student: %w", err)
	}

	return row.toPrincipal(), nil
}

func (r *repository) createCompany(
	ctx context.Context,
	np NewPrincipal,
) (*Principal, error) {
	query := `
		INSERT INTO companies (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, name, created_at`

	var row companyRow
	err := r.db.GetContext(ctx, &row, query,
		np.Email,
		np.PasswordHash,
		np.CompanyName,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("create company: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create company: %w", err)
	}

	return row.toPrincipal(), nil
}

func (r *repository) createAdmin(
	ctx context.Context,
	np NewPrincipal,
) (*Principal, error) {
	query := `
		INSERT INTO admins (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, first_name, last_name, created_at`

	var row adminRow
	err := r.db.GetContext(ctx, &row, query,
		np.Email,
		np.PasswordHash,
		np.FirstName,
		np.LastName,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("create admin: %w", core.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	return row.toPrincipal(), nil
}

func (r *repository) GetByEmail(
	ctx context.Context,
	kind Kind,
	email string,
) (*Principal, error) {
	switch kind {
	case KindStudent:
		query := `
			SELECT id, email, password_hash, first_name, last_name, created_at
			FROM students
			WHERE email = $1`

		var row studentRow
		if err := r.db.GetContext(ctx, &row, query, email); err != nil {
			return nil, mapLookupError("get student by email", err)
		}
		return row.toPrincipal(), nil

	case KindCompany:
		query := `
			SELECT id, email, password_hash, name, created_at
			FROM companies
			WHERE email = $1`

		var row companyRow
		if err := r.db.GetContext(ctx, &row, query, email); err != nil {
			return nil, mapLookupError("get company by email", err)
		}
		return row.toPrincipal(), nil

	case KindAdmin:
		query := `
			SELECT id, email, password_hash, first_name, last_name, created_at
			FROM admins
			WHERE email = $1`

		var row adminRow
		if err := r.db.GetContext(ctx, &row, query, email); err != nil {
			return nil, mapLookupError("get admin by email", err)
		}
		return row.toPrincipal(), nil

	default:
		return nil, fmt.Errorf("get principal by email: invalid kind %q", kind)
	}
}

func (r *repository) GetByRef(
	ctx context.Context,
	ref Ref,
) (*Principal, error) {
	switch ref.Kind {
	case KindStudent:
		query := `
			SELECT id, email, password_hash, first_name, last_name, created_at
			FROM students
			WHERE id = $1`

		var row studentRow
		if err := r.db.GetContext(ctx, &row, query, ref.ID); err != nil {
			return nil, mapLookupError("get student", err)
		}
		return row.toPrincipal(), nil

	case KindCompany:
		query := `
			SELECT id, email, password_hash, name, created_at
			FROM companies
			WHERE id = $1`

		var row companyRow
		if err := r.db.GetContext(ctx, &row, query, ref.ID); err != nil {
			return nil, mapLookupError("get company", err)
		}
		return row.toPrincipal(), nil

	case KindAdmin:
		query := `
			SELECT id, email, password_hash, first_name, last_name, created_at
			FROM admins
			WHERE id = $1`

		var row adminRow
		if err := r.db.GetContext(ctx, &row, query, ref.ID); err != nil {
			return nil, mapLookupError("get admin", err)
		}
		return row.toPrincipal(), nil

	default:
		return nil, fmt.Errorf("get principal: invalid kind %q", ref.Kind)
	}
}

func mapLookupError(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
