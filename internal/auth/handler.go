package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
	"github.com/frahmantamala/office-erp/internal/transport"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Resolver *authz.Resolver
}

func NewHandler(svc ServiceAPI, resolver *authz.Resolver) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Resolver:    resolver,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "authentication failed", "username", dto.Username, "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if appErr := validation.Struct(dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.Logger.WarnContext(r.Context(), "token refresh failed", "error", err)
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := h.ExtractTokenFromHeader(r)
	if token == "" {
		h.WriteAppError(w, ErrInvalidToken)
		return
	}

	if err := h.Service.Logout(r.Context(), token); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AuthMiddleware authenticates the bearer token and installs the request-scoped
// authorization context. Inactive users are refused with 403.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.WarnContext(r.Context(), "auth middleware: missing authorization token")
			h.WriteAppError(w, ErrInvalidToken)
			return
		}

		subject, err := h.Service.Authenticated(r.Context(), token)
		if err != nil {
			if errors.Is(err, ErrUserInactive) {
				h.Logger.WarnContext(r.Context(), "auth middleware: inactive user refused")
			} else {
				h.Logger.WarnContext(r.Context(), "auth middleware: token rejected", "error", err)
			}
			h.HandleServiceError(w, r, err)
			return
		}

		ctx := logger.With(r.Context(), "user_id", subject.UserID)
		ctx = authz.WithRequest(ctx, authz.NewRequest(h.Resolver, subject))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFromRequest returns the authenticated subject, if any.
func SubjectFromRequest(r *http.Request) (authz.Subject, bool) {
	q, ok := authz.RequestFromContext(r.Context())
	if !ok {
		return authz.Subject{}, false
	}
	return q.Subject(), true
}

// RequireRequest fetches the authorization context a protected handler relies on.
func RequireRequest(r *http.Request) (*authz.Request, error) {
	q, ok := authz.RequestFromContext(r.Context())
	if !ok {
		return nil, internal.NewUnauthorizedError("Authentication required", internal.ErrCodeInvalidToken)
	}
	return q, nil
}
