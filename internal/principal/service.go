package principal

import (
	"context"
	"strings"
)

// Service fronts the repository and owns email normalization: writes and
// lookups both lowercase, so an address can never register twice in
// different casings.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(
	ctx context.Context,
	np NewPrincipal,
) (*Principal, error) {
	np.Email = NormalizeEmail(np.Email)
	return s.repo.Create(ctx, np)
}

func (s *Service) LookupByEmail(
	ctx context.Context,
	kind Kind,
	email string,
) (*Principal, error) {
	return s.repo.GetByEmail(ctx, kind, NormalizeEmail(email))
}

func (s *Service) LookupByRef(ctx context.Context, ref Ref) (*Principal, error) {
	return s.repo.GetByRef(ctx, ref)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
