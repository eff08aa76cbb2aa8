package auth

import (
	"time"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

// RefreshToken is one issued refresh session. The raw secret is never stored;
// TokenHash is its SHA-256. SessionID is the jti of the access token minted
// alongside it. Exactly one of StudentID/CompanyID/AdminID is non-nil.
type RefreshToken struct {
	ID             string     `db:"id"`
	TokenHash      string     `db:"token_hash"`
	SessionID      string     `db:"session_id"`
	FamilyID       string     `db:"family_id"`
	StudentID      *int64     `db:"student_id"`
	CompanyID      *int64     `db:"company_id"`
	AdminID        *int64     `db:"admin_id"`
	IssuedAt       time.Time  `db:"issued_at"`
	ExpiresAt      time.Time  `db:"expires_at"`
	IsUsed         bool       `db:"is_used"`
	UsedAt         *time.Time `db:"used_at"`
	RevokedAt      *time.Time `db:"revoked_at"`
	ReplacedByHash *string    `db:"replaced_by_hash"`
	CreatedByIP    string     `db:"created_by_ip"`
	RevokedByIP    *string    `db:"revoked_by_ip"`
}

// SetOwner binds the record to exactly one principal. Any previously set
// owner column is cleared first, so the single-owner invariant holds by
// construction.
func (t *RefreshToken) SetOwner(ref principal.Ref) error {
	if !ref.Valid() {
		return core.ErrOwnershipViolation
	}

	t.StudentID = nil
	t.CompanyID = nil
	t.AdminID = nil

	id := ref.ID
	switch ref.Kind {
	case principal.KindStudent:
		t.StudentID = &id
	case principal.KindCompany:
		t.CompanyID = &id
	case principal.KindAdmin:
		t.AdminID = &id
	default:
		return core.ErrOwnershipViolation
	}

	return nil
}

// Owner resolves the record's single owner. A record with zero or multiple
// owner columns set is corrupt storage, reported as ErrOwnershipViolation.
func (t *RefreshToken) Owner() (principal.Ref, error) {
	var ref principal.Ref
	count := 0

	if t.StudentID != nil {
		ref = principal.Ref{Kind: principal.KindStudent, ID: *t.StudentID}
		count++
	}
	if t.CompanyID != nil {
		ref = principal.Ref{Kind: principal.KindCompany, ID: *t.CompanyID}
		count++
	}
	if t.AdminID != nil {
		ref = principal.Ref{Kind: principal.KindAdmin, ID: *t.AdminID}
		count++
	}

	if count != 1 || !ref.Valid() {
		return principal.Ref{}, core.ErrOwnershipViolation
	}

	return ref, nil
}

func (t *RefreshToken) IsExpired() bool {
	return !time.Now().Before(t.ExpiresAt)
}

func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsActive reports whether the session is in its sole non-terminal state.
// Used, revoked, and expired are all terminal; nothing transitions out of
// them.
func (t *RefreshToken) IsActive() bool {
	return !t.IsUsed && !t.IsRevoked() && !t.IsExpired()
}
