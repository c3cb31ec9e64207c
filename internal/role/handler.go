package role

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
	ListRoles(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Role, int64, error)
	GetRole(ctx context.Context, az *authz.Request, id int64) (*Role, error)
	CreateRole(ctx context.Context, az *authz.Request, dto CreateRoleDTO) (*Role, error)
	UpdateRole(ctx context.Context, az *authz.Request, id int64, dto UpdateRoleDTO) (*Role, error)
	DeleteRole(ctx context.Context, az *authz.Request, id int64) error
	GetMatrix(ctx context.Context, az *authz.Request, id int64) (*Matrix, error)
	UpdateMatrix(ctx context.Context, az *authz.Request, id int64, dto UpdateMatrixDTO) (*Matrix, error)
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

func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	limit, offset := h.ParsePagination(r)
	filter := ListFilter{Status: r.URL.Query().Get("status"), Limit: limit, Offset: offset}
	switch filter.Status {
	case "", "Active", "Inactive":
	default:
		h.HandleServiceError(w, r, internal.NewValidationFieldError("status", "status must be Active or Inactive", internal.ErrCodeInvalidStatus))
		return
	}

	roles, total, err := h.Service.ListRoles(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.ListResponse{
		Items:  roles,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
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

	role, err := h.Service.GetRole(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.CreateRole(r.Context(), az, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, role)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateRoleDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	role, err := h.Service.UpdateRole(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, role)
}

func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Service.DeleteRole(r.Context(), az, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetMatrix(w http.ResponseWriter, r *http.Request) {
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

	matrix, err := h.Service.GetMatrix(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, matrix)
}

func (h *Handler) UpdateMatrix(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateMatrixDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	matrix, err := h.Service.UpdateMatrix(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, matrix)
}
