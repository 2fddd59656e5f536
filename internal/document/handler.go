package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"coedit/internal/document/model"
	"coedit/internal/document/service"
	"coedit/middleware"
	"coedit/pkg/logger"
	"coedit/socket"
)

type DocumentHandler struct {
	Service *service.DocumentService
	Hub     *socket.Hub
}

func NewDocumentHandler(svc *service.DocumentService, hub *socket.Hub) *DocumentHandler {
	return &DocumentHandler{Service: svc, Hub: hub}
}

func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	var req model.CreateDocRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // Ignore error, default to empty

	docID, err := h.Service.CreateDocument(r.Context(), ident.UserID, req.Title)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to create document: %v", err)
		http.Error(w, "Failed to create document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.CreateDocResponse{DocID: docID})
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	docs, err := h.Service.ListDocuments(r.Context(), ident.UserID)
	if err != nil {
		logger.Sugar.Errorf("Error fetching documents: %v", err)
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []model.DocumentSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	var req model.UpdateDocRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.Service.UpdateTitle(r.Context(), docID, ident.UserID, req.Title); err != nil {
		logger.Sugar.Errorf("Handler: Failed to update title for doc %s: %v", docID, err)
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document updated successfully"))
}

func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	if err := h.Service.DeleteDocument(r.Context(), docID, ident.UserID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to delete document %s: %v", docID, err)
		writeServiceError(w, err)
		return
	}

	// Disconnect anyone still editing the deleted document.
	h.Hub.CloseRoom(docID)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Document deleted successfully"))
}

func (h *DocumentHandler) InviteCollaborator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.InviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == "" || req.UserID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Permission.Valid() {
		http.Error(w, "Invalid permission. Must be editor or viewer", http.StatusBadRequest)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	if err := h.Service.InviteCollaborator(r.Context(), req.DocID, ident.UserID, req.UserID, req.Permission); err != nil {
		logger.Sugar.Errorf("Handler: Failed to invite collaborator: %v", err)
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Collaborator added successfully"))
}

func (h *DocumentHandler) IssueShareLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.ShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DocID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Permission.Valid() {
		http.Error(w, "Invalid permission. Must be editor or viewer", http.StatusBadRequest)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	grant, err := h.Service.IssueShareLink(r.Context(), req.DocID, ident.UserID, req.Permission)
	if err != nil {
		logger.Sugar.Errorf("Handler: Failed to issue share link for doc %s: %v", req.DocID, err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.ShareResponse{Token: grant.Token, Permission: grant.Permission})
}

func (h *DocumentHandler) RevokeShareLink(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	docID := r.URL.Query().Get("docId")
	if docID == "" {
		http.Error(w, "Missing docId parameter", http.StatusBadRequest)
		return
	}

	ident, _ := middleware.IdentityFromContext(r.Context())

	if err := h.Service.RevokeShareLink(r.Context(), docID, ident.UserID); err != nil {
		logger.Sugar.Errorf("Handler: Failed to revoke share link for doc %s: %v", docID, err)
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Share link revoked"))
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrDocumentNotFound), errors.Is(err, service.ErrShareGrantNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
