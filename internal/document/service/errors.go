package service

import "errors"

var (
	// ErrAccessDenied means the identity holds no permission on the document.
	ErrAccessDenied = errors.New("access denied")
	// ErrDocumentNotFound means the document does not exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrShareGrantNotFound means the document has no share grant to revoke.
	ErrShareGrantNotFound = errors.New("no share grant for document")
)
