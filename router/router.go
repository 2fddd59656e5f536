package router

import (
	"database/sql"
	"net/http"

	docHandler "coedit/internal/document"
	"coedit/internal/document/repository"
	"coedit/internal/document/service"
	"coedit/middleware"
	"coedit/socket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(db *sql.DB, hub *socket.Hub) http.Handler {
	mux := http.NewServeMux()

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		socket.ServeWs(hub, w, r, ident)
	})
	mux.Handle("/ws", middleware.AuthMiddleware(wsHandler))

	// REST API
	docRepo := repository.NewDocumentRepository(db)
	docService := service.NewDocumentService(docRepo)
	docHandler := docHandler.NewDocumentHandler(docService, hub)
	auth := middleware.AuthMiddleware

	mux.Handle("/api/documents/create", auth(http.HandlerFunc(docHandler.CreateDocument)))
	mux.Handle("/api/documents/update", auth(http.HandlerFunc(docHandler.UpdateDocument)))
	mux.Handle("/api/documents/delete", auth(http.HandlerFunc(docHandler.DeleteDocument)))
	mux.Handle("/api/documents/invite", auth(http.HandlerFunc(docHandler.InviteCollaborator)))
	mux.Handle("/api/documents", auth(http.HandlerFunc(docHandler.GetDocuments)))
	mux.Handle("/api/documents/share", auth(http.HandlerFunc(shareHandler(docHandler))))

	mux.Handle("/metrics", promhttp.Handler())

	return middleware.CORSMiddleware(mux)
}

// shareHandler splits the share-link endpoint by method: POST issues a new
// link, DELETE disables the current one.
func shareHandler(h *docHandler.DocumentHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			h.IssueShareLink(w, r)
		case http.MethodDelete:
			h.RevokeShareLink(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}
