package notebook

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/database"
	notebookDatamodel "github.com/frahmantamala/office-erp/internal/core/datamodel/notebook"
)

const resource = authz.ResourceNotebookNotes

type Service struct {
	repo   RepositoryAPI
	tx     database.Transactor
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, tx database.Transactor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tx: tx, logger: logger}
}

func (s *Service) CreateNote(ctx context.Context, az *authz.Request, dto CreateNoteDTO) (*Note, error) {
	if err := az.Require(ctx, resource, authz.ActionCreate); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	note := NewNote(az.Subject().UserID, dto)
	row := ToDataModel(note)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := az.Recheck(ctx, resource, authz.ActionCreate); err != nil {
			return err
		}
		return s.repo.Create(ctx, row)
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to create note", err)
	}

	s.logger.InfoContext(ctx, "note created", "note_id", row.ID, "created_by", row.CreatedBy)
	return FromDataModel(row), nil
}

// GetNote returns a visible note. The share list is included for the author only.
func (s *Service) GetNote(ctx context.Context, az *authz.Request, id int64) (*Note, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, err
	}
	row, err := s.locate(ctx, az.Subject(), id, authz.ActionView, vis)
	if err != nil {
		return nil, err
	}

	note := FromDataModel(row)
	if note.CreatedBy == az.Subject().UserID {
		shared, err := s.repo.SharedWith(ctx, id)
		if err != nil {
			return nil, s.fail(ctx, "failed to load note shares", err, "note_id", id)
		}
		note.SharedWith = shared
	}
	return note, nil
}

func (s *Service) ListNotes(ctx context.Context, az *authz.Request, filter ListFilter) ([]*Note, int64, error) {
	if err := az.Require(ctx, resource, authz.ActionView); err != nil {
		return nil, 0, err
	}
	vis, err := az.Visibility(ctx, resource, authz.ActionView)
	if err != nil {
		return nil, 0, err
	}
	rows, total, err := s.repo.List(ctx, filter, authz.Scope{Visibility: vis, Filter: RowFilter(az.Subject())})
	if err != nil {
		return nil, 0, s.fail(ctx, "failed to list notes", err)
	}
	return FromDataModelSlice(rows), total, nil
}

func (s *Service) UpdateNote(ctx context.Context, az *authz.Request, id int64, dto UpdateNoteDTO) (*Note, error) {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var updated *Note
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.lockedLocate(ctx, az, id, authz.ActionEdit)
		if err != nil {
			return err
		}
		note := FromDataModel(row)
		note.Apply(dto)
		if err := s.repo.Update(ctx, ToDataModel(note)); err != nil {
			return err
		}
		updated = note
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to update note", err, "note_id", id)
	}

	s.logger.InfoContext(ctx, "note updated", "note_id", id)
	return updated, nil
}

// DeleteNote removes a note together with its shares.
func (s *Service) DeleteNote(ctx context.Context, az *authz.Request, id int64) error {
	if err := az.Require(ctx, resource, authz.ActionDelete); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockedLocate(ctx, az, id, authz.ActionDelete); err != nil {
			return err
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return s.fail(ctx, "failed to delete note", err, "note_id", id)
	}

	s.logger.InfoContext(ctx, "note deleted", "note_id", id)
	return nil
}

// ShareNote gives users the assigned scope over a note. Sharing needs edit rights on
// the note; sharing with the author or an existing recipient is a no-op.
func (s *Service) ShareNote(ctx context.Context, az *authz.Request, id int64, dto ShareNoteDTO) ([]int64, error) {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return nil, err
	}
	if appErr := dto.Validate(); appErr != nil {
		return nil, appErr
	}

	var shared []int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		row, err := s.lockedLocate(ctx, az, id, authz.ActionEdit)
		if err != nil {
			return err
		}

		recipients := uniqueExcept(dto.UserIDs, row.CreatedBy)
		if len(recipients) > 0 {
			n, err := s.repo.CountUsers(ctx, recipients)
			if err != nil {
				return err
			}
			if n != int64(len(recipients)) {
				return ErrUnknownUsers
			}
			if err := s.repo.Share(ctx, id, az.Subject().UserID, recipients); err != nil {
				return err
			}
		}

		shared, err = s.repo.SharedWith(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "failed to share note", err, "note_id", id)
	}

	s.logger.InfoContext(ctx, "note shared", "note_id", id, "user_ids", dto.UserIDs)
	return shared, nil
}

func (s *Service) UnshareNote(ctx context.Context, az *authz.Request, id, userID int64) error {
	if err := az.Require(ctx, resource, authz.ActionEdit); err != nil {
		return err
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lockedLocate(ctx, az, id, authz.ActionEdit); err != nil {
			return err
		}
		return s.repo.Unshare(ctx, id, userID)
	})
	if err != nil {
		return s.fail(ctx, "failed to unshare note", err, "note_id", id)
	}

	s.logger.InfoContext(ctx, "note unshared", "note_id", id, "user_id", userID)
	return nil
}

func (s *Service) lockedLocate(ctx context.Context, az *authz.Request, id int64, verb authz.Action) (*notebookDatamodel.Note, error) {
	vis, err := az.RecheckVisibility(ctx, resource, verb)
	if err != nil {
		return nil, err
	}
	return s.locate(ctx, az.Subject(), id, verb, vis)
}

func (s *Service) locate(ctx context.Context, subject authz.Subject, id int64, verb authz.Action, vis authz.Visibility) (*notebookDatamodel.Note, error) {
	row, err := s.repo.GetScoped(ctx, id, authz.Scope{Visibility: vis, Filter: RowFilter(subject)})
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, ErrNoteNotFound) {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	s.logger.WarnContext(ctx, "note outside permitted scope", "note_id", id, "user_id", subject.UserID, "action", verb)
	return nil, authz.Deny(subject.UserID, resource, verb, authz.ReasonOutOfScope)
}

func (s *Service) fail(ctx context.Context, msg string, err error, args ...any) error {
	if _, denied := authz.IsDenied(err); denied {
		return err
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	s.logger.ErrorContext(ctx, msg, append(args, "error", err)...)
	return internal.NewInternalError(msg, err)
}

func uniqueExcept(ids []int64, except int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == except || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
