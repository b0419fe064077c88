package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/internal/project"
	"github.com/staticnest/staticnest/pkg/models"
)

// maxUploadMemory bounds the in-memory part of multipart parsing.
const maxUploadMemory = 32 << 20

// Handler holds dependencies for the admin project endpoints.
type Handler struct {
	projects *project.Manager
	log      *zap.Logger
}

func NewHandler(projects *project.Manager, log *zap.Logger) *Handler {
	return &Handler{projects: projects, log: log}
}

// CreateProject handles POST /api/projects.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
		return
	}

	created, err := h.projects.Create(req)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	views, err := h.projects.GetAll()
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, views)
}

// GetProject handles GET /api/projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	view, err := h.projects.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, view)
}

// UpdateProject handles PUT /api/projects/{id}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var patch models.ProjectUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, h.log, fmt.Errorf("%w: invalid request body", apperr.ErrValidation))
		return
	}

	updated, err := h.projects.Update(mux.Vars(r)["id"], patch)
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

// DeleteProject handles DELETE /api/projects/{id}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "project deleted")
}

// UploadFiles handles POST /api/projects/{id}/upload.
func (h *Handler) UploadFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, h.log, fmt.Errorf("%w: invalid multipart body", apperr.ErrValidation))
		return
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, h.log, fmt.Errorf("%w: no files in upload", apperr.ErrValidation))
		return
	}

	uploaded := make([]string, 0, len(headers))
	for _, header := range headers {
		src, err := header.Open()
		if err != nil {
			respondError(w, h.log, fmt.Errorf("%w: read upload %s: %v", apperr.ErrIO, header.Filename, err))
			return
		}
		err = h.projects.SaveFile(id, header.Filename, src)
		src.Close()
		if err != nil {
			respondError(w, h.log, err)
			return
		}
		uploaded = append(uploaded, header.Filename)
	}

	respondData(w, http.StatusOK, map[string]any{
		"filesUploaded": len(uploaded),
		"files":         uploaded,
	})
}

// ListFiles handles GET /api/projects/{id}/files.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.projects.ListFiles(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, files)
}

// RenameFile handles PUT /api/projects/{id}/files/{name}.
func (h *Handler) RenameFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var req models.RenameFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewName == "" {
		respondError(w, h.log, fmt.Errorf("%w: newName is required", apperr.ErrValidation))
		return
	}

	if err := h.projects.RenameFile(vars["id"], vars["name"], req.NewName); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{
		"oldName": vars["name"],
		"newName": req.NewName,
	})
}

// DeleteFile handles DELETE /api/projects/{id}/files/{name}.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.projects.DeleteFile(vars["id"], vars["name"]); err != nil {
		respondError(w, h.log, err)
		return
	}
	respondMessage(w, http.StatusOK, "file deleted")
}

// StartRuntime handles POST /api/projects/{id}/start.
func (h *Handler) StartRuntime(w http.ResponseWriter, r *http.Request) {
	orch := h.projects.Runtime()
	if orch == nil {
		respondError(w, h.log, fmt.Errorf("%w: runtime orchestration is disabled", apperr.ErrValidation))
		return
	}

	updated, err := orch.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

// StopRuntime handles POST /api/projects/{id}/stop.
func (h *Handler) StopRuntime(w http.ResponseWriter, r *http.Request) {
	orch := h.projects.Runtime()
	if orch == nil {
		respondError(w, h.log, fmt.Errorf("%w: runtime orchestration is disabled", apperr.ErrValidation))
		return
	}

	updated, err := orch.Stop(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, h.log, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}
