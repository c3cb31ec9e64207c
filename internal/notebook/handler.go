package notebook

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/auth"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/transport"
	"github.com/frahmantamala/office-erp/pkg/logger"
)

type ServiceAPI interface {
	CreateNote(ctx context.Context, az *authz.Request, dto CreateNoteDTO) (*Note, error)
	GetNote(ctx context.Context, az *authz.Request, id int64) (*Note, error)
	ListNotes(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Note, int64, error)
	UpdateNote(ctx context.Context, az *authz.Request, id int64, dto UpdateNoteDTO) (*Note, error)
	DeleteNote(ctx context.Context, az *authz.Request, id int64) error
	ShareNote(ctx context.Context, az *authz.Request, id int64, dto ShareNoteDTO) ([]int64, error)
	UnshareNote(ctx context.Context, az *authz.Request, id, userID int64) error
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

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	var dto CreateNoteDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	note, err := h.Service.CreateNote(r.Context(), az, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, note)
}

func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
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

	note, err := h.Service.GetNote(r.Context(), az, id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, note)
}

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	az, err := auth.RequireRequest(r)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	limit, offset := h.ParsePagination(r)
	q := r.URL.Query()
	filter := ListFilter{
		Tag:    q.Get("tag"),
		Search: q.Get("q"),
		Limit:  limit,
		Offset: offset,
	}
	if v := q.Get("pinned"); v != "" {
		pinned, err := strconv.ParseBool(v)
		if err != nil {
			h.HandleServiceError(w, r, internal.NewValidationFieldError("pinned", "pinned must be true or false", internal.ErrCodeValidationFailed))
			return
		}
		filter.Pinned = &pinned
	}

	notes, total, err := h.Service.ListNotes(r.Context(), az, filter)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.ListResponse{
		Items:  notes,
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Total:  total,
	})
}

func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
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

	var dto UpdateNoteDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	note, err := h.Service.UpdateNote(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, note)
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
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

	if err := h.Service.DeleteNote(r.Context(), az, id); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ShareNote(w http.ResponseWriter, r *http.Request) {
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

	var dto ShareNoteDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	shared, err := h.Service.ShareNote(r.Context(), az, id, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string][]int64{"shared_with": shared})
}

func (h *Handler) UnshareNote(w http.ResponseWriter, r *http.Request) {
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
	userID, err := h.ParseIDParam(r, "userID")
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	if err := h.Service.UnshareNote(r.Context(), az, id, userID); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
