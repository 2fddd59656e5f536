package model

import (
	"encoding/json"
	"time"
)

// Permission is the access level a user holds on a document.
type Permission string

const (
	PermissionOwner  Permission = "owner"
	PermissionEditor Permission = "editor"
	PermissionViewer Permission = "viewer"
)

// CanEdit reports whether the permission allows edit, title, and save operations.
func (p Permission) CanEdit() bool {
	return p == PermissionOwner || p == PermissionEditor
}

// Valid reports whether p is a grantable permission (owner is never granted).
func (p Permission) Valid() bool {
	return p == PermissionEditor || p == PermissionViewer
}

// DocumentRecord is the durable state of one document.
type DocumentRecord struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Payload   json.RawMessage `json:"payload"`
	OwnerID   string          `json:"owner_id"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Collaborator is a per-document access grant for one user.
type Collaborator struct {
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
}

// ShareGrant is a token-based grant that lets non-collaborators join a
// document. At most one grant exists per document; disabling keeps the
// token but re-enabling requires issuing a fresh one.
type ShareGrant struct {
	DocumentID string     `json:"document_id"`
	Token      string     `json:"token"`
	Permission Permission `json:"permission"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
}

type DocumentSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	IsOwner   bool      `json:"is_owner"`
}

type CreateDocRequest struct {
	Title string `json:"title"`
}

type CreateDocResponse struct {
	DocID string `json:"document_id"`
}

type UpdateDocRequest struct {
	Title string `json:"title"`
}

type InviteRequest struct {
	DocID      string     `json:"document_id"`
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
}

type ShareRequest struct {
	DocID      string     `json:"document_id"`
	Permission Permission `json:"permission"`
}

type ShareResponse struct {
	Token      string     `json:"token"`
	Permission Permission `json:"permission"`
}
