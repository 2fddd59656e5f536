package service

import (
	"context"
	"database/sql"

	"coedit/internal/document/model"
	"coedit/internal/document/repository"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type DocumentService struct {
	Repo *repository.DocumentRepository
}

func NewDocumentService(repo *repository.DocumentRepository) *DocumentService {
	return &DocumentService{Repo: repo}
}

func (s *DocumentService) CreateDocument(ctx context.Context, ownerID, title string) (string, error) {
	docID := uuid.NewString()
	if title == "" {
		title = repository.DefaultTitle
	}
	if err := s.Repo.Create(ctx, docID, title, ownerID); err != nil {
		return "", err
	}
	return docID, nil
}

func (s *DocumentService) ListDocuments(ctx context.Context, userID string) ([]model.DocumentSummary, error) {
	return s.Repo.ListDocuments(ctx, userID)
}

func (s *DocumentService) UpdateTitle(ctx context.Context, docID, ownerID, title string) error {
	rowsAffected, err := s.Repo.UpdateTitle(ctx, docID, title, ownerID)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// DeleteDocument removes the durable record. The caller is responsible for
// tearing down the live room afterwards.
func (s *DocumentService) DeleteDocument(ctx context.Context, docID, userID string) error {
	if err := s.requireOwner(ctx, docID, userID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, docID)
}

// InviteCollaborator appends an explicit grant for a known user id. Only
// the owner may invite, and only editor/viewer are grantable.
func (s *DocumentService) InviteCollaborator(ctx context.Context, docID, ownerID, targetUserID string, perm model.Permission) error {
	if !perm.Valid() {
		return ErrAccessDenied
	}
	if err := s.requireOwner(ctx, docID, ownerID); err != nil {
		return err
	}
	return s.Repo.AddCollaborator(ctx, docID, targetUserID, perm)
}

// IssueShareLink mints a new share grant for the document, replacing any
// existing one. Only the owner may issue, and only editor/viewer are
// grantable.
func (s *DocumentService) IssueShareLink(ctx context.Context, docID, userID string, perm model.Permission) (*model.ShareGrant, error) {
	if !perm.Valid() {
		return nil, ErrAccessDenied
	}
	if err := s.requireOwner(ctx, docID, userID); err != nil {
		return nil, err
	}

	token := ulid.Make().String()
	if err := s.Repo.UpsertShareGrant(ctx, docID, token, perm); err != nil {
		return nil, err
	}
	return &model.ShareGrant{DocumentID: docID, Token: token, Permission: perm, Enabled: true}, nil
}

// RevokeShareLink disables the document's grant. The token is kept on the
// row; re-enabling is not supported, the owner issues a fresh link instead.
func (s *DocumentService) RevokeShareLink(ctx context.Context, docID, userID string) error {
	if err := s.requireOwner(ctx, docID, userID); err != nil {
		return err
	}
	rowsAffected, err := s.Repo.DisableShareGrant(ctx, docID)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrShareGrantNotFound
	}
	return nil
}

func (s *DocumentService) requireOwner(ctx context.Context, docID, userID string) error {
	ownerID, err := s.Repo.GetOwnerID(ctx, docID)
	if err == sql.ErrNoRows {
		return ErrDocumentNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrAccessDenied
	}
	return nil
}
