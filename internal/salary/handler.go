package salary

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
	"github.com/frahmantamala/office-erp/internal/transport"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

type ServiceAPI interface {
	CreateRecord(ctx context.Context, az *authz.Request, dto CreateRecordDTO) (*Record, error)
	GetRecord(ctx context.Context, az *authz.Request, id int64) (*Record, error)
	ListRecords(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Record, int64, error)
	UpdateRecord(ctx context.Context, az *authz.Request, id int64, dto UpdateRecordDTO) (*Record, error)
	DeleteRecord(ctx context.Context, az *authz.Request, id int64) error
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

func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateRecordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rec, err := h.Service.CreateRecord(r.Context(), az, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, rec)
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
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

	rec, err := h.Service.GetRecord(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	limit, offset := h.ParsePagination(r)
	filter := ListFilter{
		Period: r.URL.Query().Get("period"),
		Limit:  limit,
		Offset: offset,
	}
	if filter.Period != "" {
		if appErr := validation.ValidatePeriod(filter.Period); appErr != nil {
			h.WriteAppError(w, appErr)
			return
		}
	}
	if v := r.URL.Query().Get("employee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			h.WriteAppError(w, internal.NewValidationFieldError("employee_id", "employee_id must be a positive integer", internal.ErrCodeValidationFailed))
			return
		}
		filter.EmployeeID = &id
	}

	records, total, err := h.Service.ListRecords(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.ListResponse{
		Items:  records,
		Limit:  limit,
		Offset: offset,
		Total:  total,
	})
}

func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateRecordDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	rec, err := h.Service.UpdateRecord(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Service.DeleteRecord(r.Context(), az, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
