package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

// Repository is the persistence boundary for refresh-token records. Rotate is
// the one compound operation: it exists here, not in the service, because the
// used-flag check-and-set and the successor insert must share a transaction.
type Repository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	FindByID(ctx context.Context, id string) (*RefreshToken, error)
	Rotate(ctx context.Context, oldID string, successor *RefreshToken) error
	RevokeByID(ctx context.Context, id, byIP string) (bool, error)
	RevokeByFamilyID(ctx context.Context, familyID, byIP string) error
	RevokeAllForOwner(ctx context.Context, ref principal.Ref, byIP string) error
	GetActiveSessionsForOwner(
		ctx context.Context,
		ref principal.Ref,
	) ([]RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

const refreshTokenColumns = `
	id, token_hash, session_id, family_id, student_id, company_id, admin_id,
	issued_at, expires_at, is_used, used_at, revoked_at, replaced_by_hash,
	created_by_ip, revoked_by_ip`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, token *RefreshToken) error {
	return createToken(ctx, r.db, token)
}

func createToken(ctx context.Context, db core.DBTX, token *RefreshToken) error {
	if _, err := token.Owner(); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	query := `
		INSERT INTO refresh_tokens (
			id, token_hash, session_id, family_id,
			student_id, company_id, admin_id,
			expires_at, created_by_ip
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
		RETURNING issued_at`

	err := db.GetContext(ctx, &token.IssuedAt, query,
		token.ID,
		token.TokenHash,
		token.SessionID,
		token.FamilyID,
		token.StudentID,
		token.CompanyID,
		token.AdminID,
		token.ExpiresAt,
		token.CreatedByIP,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}

	return nil
}

func (r *repository) FindByHash(
	ctx context.Context,
	tokenHash string,
) (*RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

func (r *repository) FindByID(
	ctx context.Context,
	id string,
) (*RefreshToken, error) {
	query := `
		SELECT ` + refreshTokenColumns + `
		FROM refresh_tokens
		WHERE id = $1`

	var token RefreshToken
	err := r.db.GetContext(ctx, &token, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find refresh token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	return &token, nil
}

// Rotate marks the old record used and inserts its successor in one
// transaction. The conditional UPDATE is the guard against double refresh:
// of two racing callers, exactly one sees a row flip from unused to used; the
// other gets ErrNotFound and the insert never happens.
func (r *repository) Rotate(
	ctx context.Context,
	oldID string,
	successor *RefreshToken,
) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE refresh_tokens
			SET is_used = true, used_at = NOW(), replaced_by_hash = $2
			WHERE id = $1 AND is_used = false AND revoked_at IS NULL`

		result, err := tx.ExecContext(ctx, query, oldID, successor.TokenHash)
		if err != nil {
			return fmt.Errorf("mark refresh token used: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("mark refresh token used: %w", err)
		}

		if rows == 0 {
			return fmt.Errorf("mark refresh token used: %w", core.ErrNotFound)
		}

		return createToken(ctx, tx, successor)
	})
}

// RevokeByID is idempotent: revoking an already-revoked record affects zero
// rows and reports false without error.
func (r *repository) RevokeByID(
	ctx context.Context,
	id, byIP string,
) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_by_ip = $2
		WHERE id = $1 AND revoked_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, byIP)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	return rows > 0, nil
}

func (r *repository) RevokeByFamilyID(
	ctx context.Context,
	familyID, byIP string,
) error {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_by_ip = $2
		WHERE family_id = $1 AND revoked_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, familyID, byIP); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}

	return nil
}

func (r *repository) RevokeAllForOwner(
	ctx context.Context,
	ref principal.Ref,
	byIP string,
) error {
	column, err := ownerColumn(ref.Kind)
	if err != nil {
		return fmt.Errorf("revoke all owner tokens: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE refresh_tokens
		SET revoked_at = NOW(), revoked_by_ip = $2
		WHERE %s = $1 AND revoked_at IS NULL`, column)

	if _, err := r.db.ExecContext(ctx, query, ref.ID, byIP); err != nil {
		return fmt.Errorf("revoke all owner tokens: %w", err)
	}

	return nil
}

func (r *repository) GetActiveSessionsForOwner(
	ctx context.Context,
	ref principal.Ref,
) ([]RefreshToken, error) {
	column, err := ownerColumn(ref.Kind)
	if err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT `+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE %s = $1
			AND revoked_at IS NULL
			AND is_used = false
			AND expires_at > NOW()
		ORDER BY issued_at DESC`, column)

	var tokens []RefreshToken
	if err := r.db.SelectContext(ctx, &tokens, query, ref.ID); err != nil {
		return nil, fmt.Errorf("get active sessions: %w", err)
	}

	return tokens, nil
}

func (r *repository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1`

	cutoff := time.Now().Add(-24 * time.Hour)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}

	return rows, nil
}

// ownerColumn maps a principal kind to its FK column. The switch is
// exhaustive; the returned name is always one of the three literals, never
// caller input.
func ownerColumn(kind principal.Kind) (string, error) {
	switch kind {
	case principal.KindStudent:
		return "student_id", nil
	case principal.KindCompany:
		return "company_id", nil
	case principal.KindAdmin:
		return "admin_id", nil
	default:
		return "", fmt.Errorf("invalid principal kind: %q", kind)
	}
}
