package principal

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the closed set of principal variants. Every dispatch on Kind is an
// exhaustive switch; adding a fourth variant is a compile-visible change at
// each site.
type Kind string

const (
	KindStudent Kind = "student"
	KindCompany Kind = "company"
	KindAdmin   Kind = "admin"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(s)) {
	case KindStudent:
		return KindStudent, nil
	case KindCompany:
		return KindCompany, nil
	case KindAdmin:
		return KindAdmin, nil
	default:
		return "", fmt.Errorf("unknown principal kind: %q", s)
	}
}

func (k Kind) Valid() bool {
	switch k {
	case KindStudent, KindCompany, KindAdmin:
		return true
	default:
		return false
	}
}

// Role is the role tag carried in issued access tokens.
func (k Kind) Role() string {
	return string(k)
}

// Ref identifies exactly one principal: a kind and the numeric id within
// that kind's namespace. The zero Ref is invalid.
type Ref struct {
	Kind Kind
	ID   int64
}

func NewRef(kind Kind, id int64) (Ref, error) {
	if !kind.Valid() {
		return Ref{}, fmt.Errorf("invalid principal kind: %q", kind)
	}
	if id <= 0 {
		return Ref{}, fmt.Errorf("invalid principal id: %d", id)
	}
	return Ref{Kind: kind, ID: id}, nil
}

func (r Ref) Valid() bool {
	return r.Kind.Valid() && r.ID > 0
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d", r.Kind, r.ID)
}

// Principal is the resolved identity handed to the auth service: enough to
// verify a password and mint claims, nothing more.
type Principal struct {
	Ref          Ref
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

func (p *Principal) Role() string {
	return p.Ref.Kind.Role()
}

type studentRow struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *studentRow) toPrincipal() *Principal {
	return &Principal{
		Ref:          Ref{Kind: KindStudent, ID: r.ID},
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.FirstName + " " + r.LastName,
		CreatedAt:    r.CreatedAt,
	}
}

type companyRow struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Name         string    `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *companyRow) toPrincipal() *Principal {
	return &Principal{
		Ref:          Ref{Kind: KindCompany, ID: r.ID},
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.Name,
		CreatedAt:    r.CreatedAt,
	}
}

type adminRow struct {
	ID           int64     `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r *adminRow) toPrincipal() *Principal {
	return &Principal{
		Ref:          Ref{Kind: KindAdmin, ID: r.ID},
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		DisplayName:  r.FirstName + " " + r.LastName,
		CreatedAt:    r.CreatedAt,
	}
}

// NewPrincipal carries the registration profile for any kind. FirstName and
// LastName apply to students and admins, CompanyName to companies.
type NewPrincipal struct {
	Kind         Kind
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	CompanyName  string
}
