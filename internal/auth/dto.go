package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// RegisterRequest covers all three principal kinds. FirstName/LastName are
// required for students and admins, CompanyName for companies; the handler
// enforces the per-kind split after the shared validation pass.
type RegisterRequest struct {
	Email       string `json:"email"        validate:"required,email,max=255"`
	Password    string `json:"password"     validate:"required,min=8,max=128"`
	FirstName   string `json:"first_name"   validate:"omitempty,min=1,max=100"`
	LastName    string `json:"last_name"    validate:"omitempty,min=1,max=100"`
	CompanyName string `json:"company_name" validate:"omitempty,min=1,max=200"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type PrincipalResponse struct {
	ID    int64  `json:"id"`
	Kind  string `json:"kind"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type SessionResponse struct {
	Principal PrincipalResponse `json:"principal"`
	Tokens    TokenResponse     `json:"tokens"`
}

type LogoutResponse struct {
	Revoked bool `json:"revoked"`
}

type SessionInfo struct {
	ID          string    `json:"id"`
	CreatedByIP string    `json:"created_by_ip"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}
