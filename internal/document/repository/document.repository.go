package repository

import (
	"context"
	"database/sql"

	"coedit/internal/document/model"
	"coedit/pkg/logger"
)

const (
	DefaultTitle   = "Untitled Document"
	DefaultPayload = `{"ops":[]}`
)

// DocumentRepository is the store adapter the session layer writes through.
type DocumentRepository struct {
	DB *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, docID, title, ownerID string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO documents (id, title, payload, owner_id, updated_at) VALUES ($1, $2, $3, $4, NOW())`,
		docID, title, DefaultPayload, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s: %v", docID, err)
	}
	return err
}

func (r *DocumentRepository) fetch(ctx context.Context, docID string) (*model.DocumentRecord, error) {
	var rec model.DocumentRecord
	err := r.DB.QueryRowContext(ctx, "SELECT id, title, payload, owner_id, updated_at FROM documents WHERE id = $1", docID).
		Scan(&rec.ID, &rec.Title, &rec.Payload, &rec.OwnerID, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FetchOrCreate returns the document, creating it with an empty payload and
// default title if it does not exist yet. Safe to race: the insert is a no-op
// when another connection created the row first.
func (r *DocumentRepository) FetchOrCreate(ctx context.Context, docID, ownerID string) (*model.DocumentRecord, error) {
	rec, err := r.fetch(ctx, docID)
	if err == nil {
		return rec, nil
	}
	if err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to fetch document %s: %v", docID, err)
		return nil, err
	}

	_, err = r.DB.ExecContext(ctx, `INSERT INTO documents (id, title, payload, owner_id, updated_at) VALUES ($1, $2, $3, $4, NOW()) ON CONFLICT (id) DO NOTHING`,
		docID, DefaultTitle, DefaultPayload, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document %s on first access: %v", docID, err)
		return nil, err
	}
	return r.fetch(ctx, docID)
}

func (r *DocumentRepository) UpdatePayload(ctx context.Context, docID string, payload []byte) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE documents SET payload = $1, updated_at = NOW() WHERE id = $2`, payload, docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update payload for doc %s: %v", docID, err)
	}
	return err
}

func (r *DocumentRepository) UpdateTitle(ctx context.Context, docID, title, ownerID string) (int64, error) {
	result, err := r.DB.ExecContext(ctx, "UPDATE documents SET title = $1, updated_at = NOW() WHERE id = $2 AND owner_id = $3", title, docID, ownerID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update title for doc %s: %v", docID, err)
		return 0, err
	}
	return result.RowsAffected()
}

func (r *DocumentRepository) Delete(ctx context.Context, docID string) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM documents WHERE id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", docID, err)
	}
	return err
}

// AddCollaborator records an explicit owner-issued grant. Re-inviting an
// existing collaborator updates their permission.
func (r *DocumentRepository) AddCollaborator(ctx context.Context, docID, userID string, perm model.Permission) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO collaborators (document_id, user_id, permission) VALUES ($1, $2, $3)
		ON CONFLICT (document_id, user_id) DO UPDATE SET permission = $3`, docID, userID, perm)
	if err != nil {
		logger.Sugar.Errorf("Failed to add collaborator %s to doc %s: %v", userID, docID, err)
	}
	return err
}

func (r *DocumentRepository) GetOwnerID(ctx context.Context, docID string) (string, error) {
	var ownerID string
	err := r.DB.QueryRowContext(ctx, "SELECT owner_id FROM documents WHERE id = $1", docID).Scan(&ownerID)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get owner ID for doc %s: %v", docID, err)
	}
	return ownerID, err
}

func (r *DocumentRepository) GetCollaboratorPermission(ctx context.Context, docID, userID string) (model.Permission, error) {
	var perm model.Permission
	err := r.DB.QueryRowContext(ctx, "SELECT permission FROM collaborators WHERE document_id = $1 AND user_id = $2", docID, userID).Scan(&perm)
	if err != nil && err != sql.ErrNoRows {
		logger.Sugar.Errorf("Failed to get collaborator permission: %v", err)
	}
	return perm, err
}

func (r *DocumentRepository) GetShareGrant(ctx context.Context, docID string) (*model.ShareGrant, error) {
	var g model.ShareGrant
	err := r.DB.QueryRowContext(ctx, "SELECT document_id, token, permission, enabled, created_at FROM share_grants WHERE document_id = $1", docID).
		Scan(&g.DocumentID, &g.Token, &g.Permission, &g.Enabled, &g.CreatedAt)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.Sugar.Errorf("Failed to get share grant for doc %s: %v", docID, err)
		}
		return nil, err
	}
	return &g, nil
}

// UpsertShareGrant issues a fresh grant, replacing any previous one so the
// document never holds more than one active grant.
func (r *DocumentRepository) UpsertShareGrant(ctx context.Context, docID, token string, perm model.Permission) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO share_grants (document_id, token, permission, enabled, created_at) VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT (document_id) DO UPDATE SET token = $2, permission = $3, enabled = TRUE, created_at = NOW()`, docID, token, perm)
	if err != nil {
		logger.Sugar.Errorf("Failed to upsert share grant for doc %s: %v", docID, err)
	}
	return err
}

func (r *DocumentRepository) DisableShareGrant(ctx context.Context, docID string) (int64, error) {
	result, err := r.DB.ExecContext(ctx, "UPDATE share_grants SET enabled = FALSE WHERE document_id = $1", docID)
	if err != nil {
		logger.Sugar.Errorf("Failed to disable share grant for doc %s: %v", docID, err)
		return 0, err
	}
	return result.RowsAffected()
}

// AppendCollaboratorViaGrant promotes a guest to collaborator with the
// grant's permission. The grant's enabled flag is revalidated inside the
// same statement, which is the serialization point against a concurrent
// disable. ON CONFLICT DO NOTHING makes repeated redemptions idempotent.
func (r *DocumentRepository) AppendCollaboratorViaGrant(ctx context.Context, docID, userID, token string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO collaborators (document_id, user_id, permission)
		SELECT g.document_id, $2, g.permission FROM share_grants g WHERE g.document_id = $1 AND g.token = $3 AND g.enabled
		ON CONFLICT (document_id, user_id) DO NOTHING`, docID, userID, token)
	if err != nil {
		logger.Sugar.Errorf("Failed to append collaborator %s to doc %s: %v", userID, docID, err)
	}
	return err
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, userID string) ([]model.DocumentSummary, error) {
	query := `
		SELECT id, title, updated_at, owner_id FROM documents WHERE owner_id = $1
		UNION
		SELECT d.id, d.title, d.updated_at, d.owner_id FROM documents d JOIN collaborators c ON d.id = c.document_id WHERE c.user_id = $1
		ORDER BY updated_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to list documents for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	var docs []model.DocumentSummary
	for rows.Next() {
		var doc model.DocumentSummary
		var ownerID string
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.UpdatedAt, &ownerID); err != nil {
			continue
		}
		doc.IsOwner = ownerID == userID
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
