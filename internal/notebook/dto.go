package notebook

import (
	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

type CreateNoteDTO struct {
	Title   string   `json:"title" validate:"required,max=200"`
	Content string   `json:"content" validate:"max=20000"`
	Tags    []string `json:"tags,omitempty" validate:"max=20,dive,max=32"`
	Pinned  bool     `json:"pinned"`
}

func (dto CreateNoteDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

// UpdateNoteDTO is a partial update. A nil Tags leaves tags alone; an empty list clears them.
type UpdateNoteDTO struct {
	Title   *string  `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string  `json:"content,omitempty" validate:"omitempty,max=20000"`
	Tags    []string `json:"tags,omitempty" validate:"omitempty,max=20,dive,max=32"`
	Pinned  *bool    `json:"pinned,omitempty"`
}

func (dto UpdateNoteDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}

type ShareNoteDTO struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1,max=50,dive,min=1"`
}

func (dto ShareNoteDTO) Validate() *internal.AppError {
	return validation.Struct(dto)
}
