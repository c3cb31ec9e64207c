package notebook

import (
	"context"
	"strings"
	"time"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	notebookDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/notebook"
)

type Note struct {
	ID         int64     `json:"id"`
	CreatedBy  int64     `json:"created_by"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	Pinned     bool      `json:"pinned"`
	SharedWith []int64   `json:"shared_with,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ListFilter struct {
	Tag    string
	Search string
	Pinned *bool
	Limit  int
	Offset int
}

type RepositoryAPI interface {
	Create(ctx context.Context, n *notebookDatamodel.Note) error
	GetByID(ctx context.Context, id int64) (*notebookDatamodel.Note, error)
	GetScoped(ctx context.Context, id int64, scope authz.Scope) (*notebookDatamodel.Note, error)
	List(ctx context.Context, filter ListFilter, scope authz.Scope) ([]*notebookDatamodel.Note, int64, error)
	Update(ctx context.Context, n *notebookDatamodel.Note) error
	Delete(ctx context.Context, id int64) error
	SharedWith(ctx context.Context, noteID int64) ([]int64, error)
	Share(ctx context.Context, noteID, sharedBy int64, userIDs []int64) error
	Unshare(ctx context.Context, noteID, userID int64) error
	CountUsers(ctx context.Context, userIDs []int64) (int64, error)
}

var (
	ErrNoteNotFound = internal.NewNotFoundError("Note not found", internal.ErrCodeNoteNotFound)
	ErrUnknownUsers = internal.NewValidationFieldError("user_ids", "one or more users do not exist", internal.ErrCodeUserNotFound)
)

// RowFilter relates notes to s: own notes were written by s, assigned notes were
// shared with s.
func RowFilter(s authz.Subject) authz.RowFilter {
	return authz.RowFilter{
		OwnerColumn: "created_by",
		OwnerValue:  s.UserID,
		Assigned: func() (string, []any) {
			return "id IN (SELECT note_id FROM notebook_note_shares WHERE user_id = ?)", []any{s.UserID}
		},
	}
}

func NewNote(createdBy int64, dto CreateNoteDTO) *Note {
	now := time.Now()
	return &Note{
		CreatedBy: createdBy,
		Title:     dto.Title,
		Content:   dto.Content,
		Tags:      normalizeTags(dto.Tags),
		Pinned:    dto.Pinned,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (n *Note) Apply(dto UpdateNoteDTO) {
	if dto.Title != nil {
		n.Title = *dto.Title
	}
	if dto.Content != nil {
		n.Content = *dto.Content
	}
	if dto.Tags != nil {
		n.Tags = normalizeTags(dto.Tags)
	}
	if dto.Pinned != nil {
		n.Pinned = *dto.Pinned
	}
	n.UpdatedAt = time.Now()
}

// normalizeTags lowercases, trims and de-duplicates tags, keeping their order.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Tags are stored comma separated with leading and trailing commas so a single tag
// can be matched with LIKE '%,tag,%'.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return "," + strings.Join(tags, ",") + ","
}

func decodeTags(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, ",") {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// TagPattern is the LIKE pattern matching notes carrying tag.
func TagPattern(tag string) string {
	return "%," + strings.ToLower(strings.TrimSpace(tag)) + ",%"
}

func ToDataModel(n *Note) *notebookDatamodel.Note {
	return &notebookDatamodel.Note{
		ID:        n.ID,
		CreatedBy: n.CreatedBy,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      encodeTags(n.Tags),
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func FromDataModel(n *notebookDatamodel.Note) *Note {
	return &Note{
		ID:        n.ID,
		CreatedBy: n.CreatedBy,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      decodeTags(n.Tags),
		Pinned:    n.Pinned,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func FromDataModelSlice(rows []*notebookDatamodel.Note) []*Note {
	out := make([]*Note, len(rows))
	for i, n := range rows {
		out[i] = FromDataModel(n)
	}
	return out
}
