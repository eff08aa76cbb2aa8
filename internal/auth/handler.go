package auth

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/internlink/auth-service/internal/core"
	"github.com/internlink/auth-service/internal/middleware"
	"github.com/internlink/auth-service/internal/principal"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register/{kind}", h.Register)
		r.Post("/login/{kind}", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Get("/sessions", h.GetSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSessionByID)
			r.Post("/logout-all", h.LogoutAll)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	kind, err := principal.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, "unknown principal kind")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if msg := validateProfile(kind, req); msg != "" {
		core.BadRequest(w, msg)
		return
	}

	resp, err := h.service.Register(r.Context(), kind, req, clientIP(r))
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			core.AuthOperations.WithLabelValues(
				"register", string(kind), "email_exists",
			).Inc()
			core.JSONError(w, &core.AppError{
				Status:  http.StatusBadRequest,
				Code:    "email_exists",
				Message: "an account with this email already exists",
			})
			return
		}
		core.AuthOperations.WithLabelValues(
			"register", string(kind), "error",
		).Inc()
		core.InternalServerError(w, err)
		return
	}

	core.AuthOperations.WithLabelValues(
		"register", string(kind), "success",
	).Inc()
	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	kind, err := principal.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		core.BadRequest(w, "unknown principal kind")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Login(r.Context(), kind, req, clientIP(r))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			core.AuthOperations.WithLabelValues(
				"login", string(kind), "invalid_credentials",
			).Inc()
			core.JSONError(
				w,
				core.UnauthorizedError("invalid email or password"),
			)
			return
		}
		core.AuthOperations.WithLabelValues(
			"login", string(kind), "error",
		).Inc()
		core.InternalServerError(w, err)
		return
	}

	core.AuthOperations.WithLabelValues(
		"login", string(kind), "success",
	).Inc()
	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, clientIP(r))
	if err != nil {
		if errors.Is(err, ErrInvalidOrExpiredToken) {
			core.AuthOperations.WithLabelValues(
				"refresh", "", "invalid_token",
			).Inc()
			core.JSONError(w, core.TokenInvalidError())
			return
		}
		core.AuthOperations.WithLabelValues("refresh", "", "error").Inc()
		core.InternalServerError(w, err)
		return
	}

	core.AuthOperations.WithLabelValues(
		"refresh", resp.Principal.Kind, "success",
	).Inc()
	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	revoked, err := h.service.RevokeSession(
		r.Context(),
		req.RefreshToken,
		clientIP(r),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if !revoked {
		core.WriteJSON(w, http.StatusBadRequest, LogoutResponse{Revoked: false})
		return
	}

	core.OK(w, LogoutResponse{Revoked: true})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	ref, ok := middleware.GetPrincipalRef(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	resp, err := h.service.Me(r.Context(), ref)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "principal")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	ref, ok := middleware.GetPrincipalRef(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	sessions, err := h.service.ActiveSessions(r.Context(), ref)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSessionByID(w http.ResponseWriter, r *http.Request) {
	ref, ok := middleware.GetPrincipalRef(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")

	err := h.service.RevokeSessionByID(r.Context(), ref, sessionID, clientIP(r))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "session")
			return
		}
		if errors.Is(err, core.ErrForbidden) {
			core.Forbidden(w, "cannot revoke another principal's session")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ref, ok := middleware.GetPrincipalRef(r.Context())
	if !ok {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.LogoutAll(r.Context(), ref, clientIP(r)); err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.NoContent(w)
}

func validateProfile(kind principal.Kind, req RegisterRequest) string {
	switch kind {
	case principal.KindCompany:
		if req.CompanyName == "" {
			return "company_name is required"
		}
	case principal.KindStudent, principal.KindAdmin:
		if req.FirstName == "" || req.LastName == "" {
			return "first_name and last_name are required"
		}
	}
	return ""
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
