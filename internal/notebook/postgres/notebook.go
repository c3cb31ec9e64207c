package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	notebookDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/notebook"
	userDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/user"
	"github.com/frahmantamala/office-erp/internal/notebook"
)

// NoteRepository implements the notebook.RepositoryAPI interface using GORM
type NoteRepository struct {
	db *gorm.DB
}

func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, r.db)
}

func (r *NoteRepository) Create(ctx context.Context, n *notebookDatamodel.Note) error {
	return r.conn(ctx).Create(n).Error
}

func (r *NoteRepository) GetByID(ctx context.Context, id int64) (*notebookDatamodel.Note, error) {
	return r.first(r.conn(ctx).Where("id = ?", id))
}

func (r *NoteRepository) GetScoped(ctx context.Context, id int64, scope authz.Scope) (*notebookDatamodel.Note, error) {
	return r.first(scope.Apply(r.conn(ctx).Where("id = ?", id)))
}

// List returns pinned notes first, then the most recently updated.
func (r *NoteRepository) List(ctx context.Context, filter notebook.ListFilter, scope authz.Scope) ([]*notebookDatamodel.Note, int64, error) {
	q := scope.Apply(r.conn(ctx).Model(&notebookDatamodel.Note{}))
	if filter.Tag != "" {
		q = q.Where("tags LIKE ?", notebook.TagPattern(filter.Tag))
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("(title LIKE ? OR content LIKE ?)", like, like)
	}
	if filter.Pinned != nil {
		q = q.Where("pinned = ?", *filter.Pinned)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notes []*notebookDatamodel.Note
	err := q.Order("pinned DESC").
		Order("updated_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&notes).Error
	return notes, total, err
}

func (r *NoteRepository) Update(ctx context.Context, n *notebookDatamodel.Note) error {
	return r.conn(ctx).Model(&notebookDatamodel.Note{}).
		Where("id = ?", n.ID).
		Updates(map[string]interface{}{
			"title":      n.Title,
			"content":    n.Content,
			"tags":       n.Tags,
			"pinned":     n.Pinned,
			"updated_at": n.UpdatedAt,
		}).Error
}

// Delete removes the note and every share of it.
func (r *NoteRepository) Delete(ctx context.Context, id int64) error {
	db := r.conn(ctx)
	if err := db.Where("note_id = ?", id).Delete(&notebookDatamodel.NoteShare{}).Error; err != nil {
		return err
	}
	res := db.Delete(&notebookDatamodel.Note{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notebook.ErrNoteNotFound
	}
	return nil
}

func (r *NoteRepository) SharedWith(ctx context.Context, noteID int64) ([]int64, error) {
	ids := []int64{}
	err := r.conn(ctx).Model(&notebookDatamodel.NoteShare{}).
		Where("note_id = ?", noteID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// Share is idempotent: existing (note, user) pairs are left untouched.
func (r *NoteRepository) Share(ctx context.Context, noteID, sharedBy int64, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]notebookDatamodel.NoteShare, len(userIDs))
	for i, id := range userIDs {
		rows[i] = notebookDatamodel.NoteShare{NoteID: noteID, UserID: id, SharedBy: sharedBy}
	}
	return r.conn(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "note_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *NoteRepository) Unshare(ctx context.Context, noteID, userID int64) error {
	return r.conn(ctx).
		Where("note_id = ? AND user_id = ?", noteID, userID).
		Delete(&notebookDatamodel.NoteShare{}).Error
}

func (r *NoteRepository) CountUsers(ctx context.Context, userIDs []int64) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&userDatamodel.User{}).Where("id IN ?", userIDs).Count(&n).Error
	return n, err
}

func (r *NoteRepository) first(q *gorm.DB) (*notebookDatamodel.Note, error) {
	var n notebookDatamodel.Note
	if err := q.First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notebook.ErrNoteNotFound
		}
		return nil, err
	}
	return &n, nil
}
