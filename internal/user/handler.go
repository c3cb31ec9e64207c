package user

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/transport"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

type ServiceAPI interface {
	CreateUser(ctx context.Context, az *authz.Request, dto CreateUserDTO) (*User, error)
	GetUser(ctx context.Context, az *authz.Request, id int64) (*User, error)
	ListUsers(ctx context.Context, az *authz.Request, filter ListFilter) ([]*User, int64, error)
	Me(ctx context.Context, az *authz.Request) (*Profile, error)
	UpdateProfile(ctx context.Context, az *authz.Request, id int64, dto UpdateProfileDTO) (*User, error)
	ChangePassword(ctx context.Context, az *authz.Request, id int64, dto ChangePasswordDTO) error
	SetStatus(ctx context.Context, az *authz.Request, id int64, dto SetStatusDTO) (*User, error)
	AssignRoles(ctx context.Context, az *authz.Request, id int64, dto AssignRolesDTO) (*User, error)
	DeleteUser(ctx context.Context, az *authz.Request, id int64) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.CreateUser(r.Context(), az, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.GetUser(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	limit, offset := h.ParsePagination(r)
	q := r.URL.Query()
	filter := ListFilter{
		Status: q.Get("status"),
		Search: q.Get("q"),
		Limit:  limit,
		Offset: offset,
	}
	switch filter.Status {
	case "", "Active", "Inactive", "Suspended":
	default:
		h.HandleServiceError(w, r, internal.NewValidationFieldError("status", "status must be one of Active, Inactive, Suspended", internal.ErrCodeInvalidStatus))
		return
	}

	users, total, err := h.Service.ListUsers(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.ListResponse{
		Items:  users,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	profile, err := h.Service.Me(r.Context(), az)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto UpdateProfileDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.UpdateProfile(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto ChangePasswordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.ChangePassword(r.Context(), az, id, dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto SetStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.SetStatus(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto AssignRolesDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	u, err := h.Service.AssignRoles(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	id, err := h.ParseIDParam(r, "id")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.DeleteUser(r.Context(), az, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
