package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/auth"
	"github.com/staticnest/staticnest/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes. trustProxy controls whether the
// login limiter keys on the X-Forwarded-For header.
func SetupRoutes(h *Handler, authHandler *AuthHandler, publicHandler *PublicHandler, authMgr *auth.Manager, loginLimiter *ratelimit.Limiter, trustProxy bool, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestLogger(log))
	r.Use(corsMiddleware)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", Health).Methods("GET")

	// Auth endpoints; login is rate limited per client address.
	api.Handle("/login", LoginRateLimit(loginLimiter, trustProxy)(
		http.HandlerFunc(authHandler.Login))).Methods("POST")
	api.HandleFunc("/logout", authHandler.Logout).Methods("POST")
	api.HandleFunc("/auth/check", authHandler.Check).Methods("GET")

	// Public gallery endpoints (no auth).
	public := api.PathPrefix("/public").Subrouter()
	public.HandleFunc("/projects", publicHandler.ListPublicProjects).Methods("GET")
	public.HandleFunc("/projects/{hash}", publicHandler.GetPublicProject).Methods("GET")

	// Admin project endpoints (session required).
	admin := api.PathPrefix("/projects").Subrouter()
	admin.Use(RequireAuth(authMgr))
	admin.HandleFunc("", h.CreateProject).Methods("POST")
	admin.HandleFunc("", h.ListProjects).Methods("GET")
	admin.HandleFunc("/{id}", h.GetProject).Methods("GET")
	admin.HandleFunc("/{id}", h.UpdateProject).Methods("PUT")
	admin.HandleFunc("/{id}", h.DeleteProject).Methods("DELETE")
	admin.HandleFunc("/{id}/upload", h.UploadFiles).Methods("POST")
	admin.HandleFunc("/{id}/files", h.ListFiles).Methods("GET")
	admin.HandleFunc("/{id}/files/{name}", h.RenameFile).Methods("PUT")
	admin.HandleFunc("/{id}/files/{name}", h.DeleteFile).Methods("DELETE")
	admin.HandleFunc("/{id}/start", h.StartRuntime).Methods("POST")
	admin.HandleFunc("/{id}/stop", h.StopRuntime).Methods("POST")
	admin.HandleFunc("/{id}/logs/ws", h.StreamLogs).Methods("GET")

	// Public file access: any method, with or without a trailing path.
	r.HandleFunc("/p/{hash}", publicHandler.ServeProject)
	r.HandleFunc("/p/{hash}/{path:.*}", publicHandler.ServeProject)

	return r
}
