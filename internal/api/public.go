package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/project"
	"github.com/staticnest/staticnest/internal/resolver"
)

// PublicHandler serves the unauthenticated surface: the gallery listing and
// hosted file access under /p/{hash}.
type PublicHandler struct {
	projects *project.Manager
	resolver *resolver.Resolver
	log      *zap.Logger
}

func NewPublicHandler(projects *project.Manager, res *resolver.Resolver, log *zap.Logger) *PublicHandler {
	return &PublicHandler{projects: projects, resolver: res, log: log}
}

// ListPublicProjects handles GET /api/public/projects.
func (h *PublicHandler) ListPublicProjects(w http.ResponseWriter, r *http.Request) {
	public, err := h.projects.GetPublic()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, public)
}

// GetPublicProject handles GET /api/public/projects/{hash}.
func (h *PublicHandler) GetPublicProject(w http.ResponseWriter, r *http.Request) {
	card, err := h.projects.GetByPublicHash(mux.Vars(r)["hash"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, card)
}

// ServeProject handles any method on /p/{hash} and /p/{hash}/{path}. All
// not-found outcomes render the same themed page; internal reasons stay in
// the logs.
func (h *PublicHandler) ServeProject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	outcome := h.resolver.Resolve(vars["hash"], vars["path"])
	switch outcome.Kind {
	case resolver.KindRedirect:
		http.Redirect(w, r, outcome.Location, http.StatusFound)
	case resolver.KindFile:
		w.Header().Set("Content-Type", outcome.ContentType)
		http.ServeFile(w, r, outcome.Path)
	default:
		h.log.Debug("public request not found",
			zap.String("hash", vars["hash"]),
			zap.String("path", vars["path"]),
			zap.String("reason", outcome.Reason))
		renderNotFound(w, outcome.Reason)
	}
}

// Health handles GET /api/health.
func Health(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "ok"})
}

const notFoundPage = `<!DOCTYPE html>
<html>
<head>
    <title>Not Found</title>
    <style>
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            display: flex;
            justify-content: center;
            align-items: center;
            min-height: 100vh;
            margin: 0;
            background: linear-gradient(135deg, #1a1a2e 0%%, #16213e 100%%);
            color: white;
        }
        .container {
            text-align: center;
            padding: 40px;
            background: rgba(255,255,255,0.05);
            border-radius: 16px;
            border: 1px solid rgba(255,255,255,0.1);
        }
        h1 { margin: 0 0 10px; font-size: 2rem; }
        p { margin: 0; opacity: 0.8; }
        a {
            display: inline-block;
            margin-top: 20px;
            padding: 12px 24px;
            background: rgba(255,255,255,0.1);
            color: white;
            text-decoration: none;
            border-radius: 8px;
        }
    </style>
</head>
<body>
    <div class="container">
        <h1>404</h1>
        <p>%s</p>
        <a href="/">Back to Gallery</a>
    </div>
</body>
</html>`

func renderNotFound(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	fmt.Fprintf(w, notFoundPage, message)
}
