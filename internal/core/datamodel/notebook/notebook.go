package notebook

import "time"

type Note struct {
	ID        int64     `gorm:"primaryKey"`
	CreatedBy int64     `gorm:"column:created_by;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Content   string    `gorm:"column:content"`
	Tags      string    `gorm:"column:tags"`
	Pinned    bool      `gorm:"column:pinned;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Note) TableName() string {
	return "notebook_notes"
}

// NoteShare grants another user the "assigned" scope over a note.
type NoteShare struct {
	ID        int64     `gorm:"primaryKey"`
	NoteID    int64     `gorm:"column:note_id;not null;uniqueIndex:idx_note_share"`
	UserID    int64     `gorm:"column:user_id;not null;uniqueIndex:idx_note_share"`
	SharedBy  int64     `gorm:"column:shared_by;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (NoteShare) TableName() string {
	return "notebook_note_shares"
}
