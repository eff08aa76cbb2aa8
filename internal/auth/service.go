package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/principal"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password; callers must not be able to tell which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmailExists = errors.New("email already exists")

	// ErrInvalidOrExpiredToken collapses not-found, used, revoked, and
	// expired refresh tokens into one externally visible outcome.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// PrincipalResolver is the collaborator contract owned by the CRUD layer:
// create and look up credential records, nothing else.
type PrincipalResolver interface {
	Create(
		ctx context.Context,
		np principal.NewPrincipal,
	) (*principal.Principal, error)
	LookupByEmail(
		ctx context.Context,
		kind principal.Kind,
		email string,
	) (*principal.Principal, error)
	LookupByRef(
		ctx context.Context,
		ref principal.Ref,
	) (*principal.Principal, error)
}

type Service struct {
	repo       Repository
	codec      *TokenCodec
	principals PrincipalResolver
	redis      *redis.Client
	accessTTL  time.Duration
}

func NewService(
	repo Repository,
	codec *TokenCodec,
	principals PrincipalResolver,
	redisClient *redis.Client,
) *Service {
	return &Service{
		repo:       repo,
		codec:      codec,
		principals: principals,
		redis:      redisClient,
		accessTTL:  codec.config.AccessTokenExpire,
	}
}

func (s *Service) Register(
	ctx context.Context,
	kind principal.Kind,
	req RegisterRequest,
	ipAddress string,
) (*SessionResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.principals.Create(ctx, principal.NewPrincipal{
		Kind:         kind,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		CompanyName:  req.CompanyName,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create principal: %w", err)
	}

	return s.issueSession(ctx, p, "", nil, ipAddress)
}

func (s *Service) Login(
	ctx context.Context,
	kind principal.Kind,
	req LoginRequest,
	ipAddress string,
) (*SessionResponse, error) {
	p, err := s.principals.LookupByEmail(ctx, kind, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Burn a verification anyway so unknown emails cost the
			// same as wrong passwords.
			core.VerifyPasswordTimingSafe(req.Password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	if !core.VerifyPasswordTimingSafe(req.Password, &p.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// Prior sessions stay valid: concurrent sessions per principal are
	// allowed.
	return s.issueSession(ctx, p, "", nil, ipAddress)
}

func (s *Service) Refresh(
	ctx context.Context,
	rawRefreshToken, ipAddress string,
) (*SessionResponse, error) {
	tokenHash := core.HashToken(rawRefreshToken)

	stored, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	if stored.IsUsed {
		// A rotated-away token coming back is a reuse signal: some party
		// holds a token that should no longer exist. Kill the whole
		// lineage.
		slog.Warn("refresh token reuse detected, revoking family",
			"family_id", stored.FamilyID,
		)
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, stored.FamilyID, ipAddress)
		return nil, ErrInvalidOrExpiredToken
	}

	if !stored.IsActive() {
		return nil, ErrInvalidOrExpiredToken
	}

	owner, err := stored.Owner()
	if err != nil {
		slog.Error("refresh token with broken ownership",
			"token_id", stored.ID,
			"error", err,
		)
		return nil, ErrInvalidOrExpiredToken
	}

	// Live re-read so a renamed principal gets current claims, not the
	// ones cached at issuance.
	p, err := s.principals.LookupByRef(ctx, owner)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidOrExpiredToken
		}
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	return s.issueSession(ctx, p, stored.FamilyID, stored, ipAddress)
}

// RevokeSession revokes the refresh session matching the raw token. An
// unknown token reports false rather than an error; callers treat that as a
// benign no-op. The paired access token's jti is blacklisted best-effort.
func (s *Service) RevokeSession(
	ctx context.Context,
	rawRefreshToken, ipAddress string,
) (bool, error) {
	tokenHash := core.HashToken(rawRefreshToken)

	stored, err := s.repo.FindByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find refresh token: %w", err)
	}

	revoked, err := s.repo.RevokeByID(ctx, stored.ID, ipAddress)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}

	if revoked {
		if blErr := s.blacklistAccessToken(ctx, stored.SessionID); blErr != nil {
			slog.Warn("failed to blacklist access token",
				"session_id", stored.SessionID,
				"error", blErr,
			)
		}
	}

	return revoked, nil
}

func (s *Service) LogoutAll(
	ctx context.Context,
	ref principal.Ref,
	ipAddress string,
) error {
	if err := s.repo.RevokeAllForOwner(ctx, ref, ipAddress); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}
	return nil
}

func (s *Service) ActiveSessions(
	ctx context.Context,
	ref principal.Ref,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForOwner(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:          t.ID,
			CreatedByIP: t.CreatedByIP,
			IssuedAt:    t.IssuedAt,
			ExpiresAt:   t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSessionByID(
	ctx context.Context,
	ref principal.Ref,
	sessionID, ipAddress string,
) error {
	stored, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	owner, err := stored.Owner()
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if owner != ref {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if _, err := s.repo.RevokeByID(ctx, stored.ID, ipAddress); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) Me(
	ctx context.Context,
	ref principal.Ref,
) (*PrincipalResponse, error) {
	p, err := s.principals.LookupByRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	return &PrincipalResponse{
		ID:    p.Ref.ID,
		Kind:  string(p.Ref.Kind),
		Email: p.Email,
		Name:  p.DisplayName,
		Role:  p.Role(),
	}, nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	sessionID string,
) (bool, error) {
	if s.redis == nil {
		return false, nil
	}

	exists, err := s.redis.Exists(ctx, "blacklist:"+sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// SweepExpired deletes long-expired refresh records. Expiry is enforced
// lazily by IsActive; this only reclaims storage.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx)
}

func (s *Service) blacklistAccessToken(
	ctx context.Context,
	sessionID string,
) error {
	if s.redis == nil || sessionID == "" {
		return nil
	}

	// The access token dies at most accessTTL after issuance, so the
	// blacklist entry never needs to outlive that.
	key := "blacklist:" + sessionID
	if err := s.redis.Set(ctx, key, "1", s.accessTTL).Err(); err != nil {
		return fmt.Errorf("blacklist access token: %w", err)
	}

	return nil
}

func (s *Service) issueSession(
	ctx context.Context,
	p *principal.Principal,
	familyID string,
	rotateFrom *RefreshToken,
	ipAddress string,
) (*SessionResponse, error) {
	access, err := s.codec.IssueAccessToken(p)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refreshData, err := s.codec.NewRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	record := &RefreshToken{
		ID:          uuid.New().String(),
		TokenHash:   refreshData.Hash,
		SessionID:   access.SessionID,
		FamilyID:    refreshData.FamilyID,
		ExpiresAt:   refreshData.ExpiresAt,
		CreatedByIP: ipAddress,
	}

	if err := record.SetOwner(p.Ref); err != nil {
		return nil, fmt.Errorf("bind refresh token owner: %w", err)
	}

	if rotateFrom != nil {
		err = s.repo.Rotate(ctx, rotateFrom.ID, record)
		if errors.Is(err, core.ErrNotFound) {
			// A concurrent refresh won the check-and-set.
			return nil, ErrInvalidOrExpiredToken
		}
	} else {
		err = s.repo.Create(ctx, record)
	}
	if err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &SessionResponse{
		Principal: PrincipalResponse{
			ID:    p.Ref.ID,
			Kind:  string(p.Ref.Kind),
			Email: p.Email,
			Name:  p.DisplayName,
			Role:  p.Role(),
		},
		Tokens: TokenResponse{
			AccessToken:  access.Token,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.accessTTL / time.Second),
			ExpiresAt:    access.ExpiresAt,
		},
	}, nil
}
