package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/frahmantamala/office-erp/internal/auth"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db: db,
	}
}

func (r *Repository) GetByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	return r.first(ctx, "username = ?", username)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*auth.Identity, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Repository) first(ctx context.Context, query string, arg interface{}) (*auth.Identity, error) {
	var row userDatamodel.User
	if err := r.db.WithContext(ctx).Where(query, arg).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, err
	}
	return &auth.Identity{
		ID:           row.ID,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Status:       row.Status,
		EmployeeID:   row.EmployeeID,
	}, nil
}
