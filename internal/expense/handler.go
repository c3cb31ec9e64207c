package expense

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/transport"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

type ServiceAPI interface {
	CreateExpense(ctx context.Context, az *authz.Request, dto CreateExpenseDTO) (*Expense, error)
	GetExpense(ctx context.Context, az *authz.Request, id int64) (*Expense, error)
	ListExpenses(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Expense, int64, error)
	UpdateExpense(ctx context.Context, az *authz.Request, id int64, dto UpdateExpenseDTO) (*Expense, error)
	DeleteExpense(ctx context.Context, az *authz.Request, id int64) error
	ExportExpenses(ctx context.Context, az *authz.Request, filter ListFilter) (*ExportResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	expense, err := h.Service.CreateExpense(r.Context(), az, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, expense)
}

func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
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

	expense, err := h.Service.GetExpense(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, expense)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	filter, err := h.parseFilter(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	expenses, total, err := h.Service.ListExpenses(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.ListResponse{
		Items:  expenses,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateExpenseDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	expense, err := h.Service.UpdateExpense(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, expense)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Service.DeleteExpense(r.Context(), az, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportExpenses(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	filter, err := h.parseFilter(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	export, err := h.Service.ExportExpenses(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="office_expenses.json"`)
	h.WriteJSON(w, http.StatusOK, export)
}

const dateLayout = "2006-01-02"

func (h *Handler) parseFilter(r *http.Request) (ListFilter, error) {
	limit, offset := h.ParsePagination(r)
	q := r.URL.Query()
	filter := ListFilter{
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return ListFilter{}, internal.NewValidationFieldError(p.name, p.name+" must be a date in YYYY-MM-DD format", internal.ErrCodeInvalidDate)
		}
		*p.dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return ListFilter{}, internal.NewValidationFieldError("to", "to must not be before from", internal.ErrCodeInvalidDate)
	}
	return filter, nil
}
