// Package project implements the project lifecycle: creation with scaffolded
// defaults, mutation, deletion with runtime teardown, and file management
// within a project's directory.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/internal/hashgen"
	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/internal/runtime"
	"github.com/staticnest/staticnest/pkg/models"
)

// maxTokenAttempts bounds the generate-and-check loop for new IDs and
// public hashes.
const maxTokenAttempts = 5

// Manager orchestrates the registry, the per-project directories, and the
// runtime orchestrator.
type Manager struct {
	store       *metadata.Store
	orch        *runtime.Orchestrator // nil when runtime orchestration is disabled
	projectsDir string
	log         *zap.Logger
}

func NewManager(store *metadata.Store, orch *runtime.Orchestrator, projectsDir string, log *zap.Logger) (*Manager, error) {
	if err := os.MkdirAll(projectsDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create projects directory: %v", apperr.ErrIO, err)
	}
	return &Manager{
		store:       store,
		orch:        orch,
		projectsDir: projectsDir,
		log:         log,
	}, nil
}

// Runtime returns the orchestrator, or nil when runtime orchestration is
// disabled.
func (m *Manager) Runtime() *runtime.Orchestrator {
	return m.orch
}

// Dir returns the directory path for a project ID.
func (m *Manager) Dir(projectID string) string {
	return filepath.Join(m.projectsDir, projectID)
}

// Create registers a new project. Hosted projects get a directory with
// three scaffolded default files parameterized by the project name.
func (m *Manager) Create(req models.CreateProjectRequest) (*models.Project, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	if req.Type == "" {
		req.Type = models.TypeHosted
	}
	switch req.Type {
	case models.TypeHosted, models.TypeExternal:
	default:
		return nil, fmt.Errorf("%w: unknown project type %q", apperr.ErrValidation, req.Type)
	}
	if req.Type == models.TypeExternal && req.ExternalURL == "" {
		return nil, fmt.Errorf("%w: externalUrl is required for external projects", apperr.ErrValidation)
	}

	id, err := m.newUniqueID()
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
	}

	if req.Type == models.TypeExternal {
		project.ExternalURL = req.ExternalURL
	} else {
		hash, err := m.newUniquePublicHash()
		if err != nil {
			return nil, err
		}
		project.PublicHash = hash
		project.RuntimeState = models.RuntimeStopped

		dir := m.Dir(id)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create project directory: %v", apperr.ErrIO, err)
		}
		if err := scaffoldDefaults(dir, req.Name); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	created, err := m.store.Create(project)
	if err != nil {
		// Keep creation atomic: no orphan directory without a record.
		if project.Type == models.TypeHosted {
			os.RemoveAll(m.Dir(id))
		}
		return nil, err
	}

	m.log.Info("project created",
		zap.String("project", id),
		zap.String("type", string(created.Type)),
		zap.String("name", created.Name))
	return created, nil
}

// Get returns a single project with its derived view fields.
func (m *Manager) Get(id string) (*models.ProjectView, error) {
	project, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	return m.view(project), nil
}

// GetAll returns the admin view of every project.
func (m *Manager) GetAll() ([]*models.ProjectView, error) {
	projects, err := m.store.List()
	if err != nil {
		return nil, err
	}
	views := make([]*models.ProjectView, 0, len(projects))
	for _, project := range projects {
		views = append(views, m.view(project))
	}
	return views, nil
}

// GetPublic returns the gallery listing.
func (m *Manager) GetPublic() ([]*models.PublicProject, error) {
	projects, err := m.store.List()
	if err != nil {
		return nil, err
	}
	public := make([]*models.PublicProject, 0, len(projects))
	for _, project := range projects {
		view := m.view(project)
		public = append(public, &models.PublicProject{
			Name:         project.Name,
			Description:  project.Description,
			Type:         project.Type,
			PublicHash:   project.PublicHash,
			ExternalURL:  project.ExternalURL,
			RuntimeState: project.RuntimeState,
			IsLive:       view.IsLive,
		})
	}
	return public, nil
}

// GetByPublicHash returns the public card for a hosted project.
func (m *Manager) GetByPublicHash(hash string) (*models.PublicProject, error) {
	project, err := m.store.GetByPublicHash(hash)
	if err != nil {
		return nil, err
	}
	view := m.view(project)
	return &models.PublicProject{
		Name:         project.Name,
		Description:  project.Description,
		Type:         project.Type,
		PublicHash:   project.PublicHash,
		RuntimeState: project.RuntimeState,
		IsLive:       view.IsLive,
	}, nil
}

// Update applies the allowed mutable fields. The project type is immutable
// and an external URL only applies to external projects.
func (m *Manager) Update(id string, patch models.ProjectUpdate) (*models.Project, error) {
	project, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if patch.Type != nil && *patch.Type != project.Type {
		return nil, fmt.Errorf("%w: project type is immutable", apperr.ErrValidation)
	}
	patch.Type = nil
	if project.Type != models.TypeExternal {
		patch.ExternalURL = nil
	} else if patch.ExternalURL != nil && *patch.ExternalURL == "" {
		return nil, fmt.Errorf("%w: externalUrl cannot be empty", apperr.ErrValidation)
	}
	return m.store.Update(id, patch)
}

// Delete tears down a project: runtime instance (best effort), directory,
// then registry entry. Runtime cleanup failure never blocks deletion.
func (m *Manager) Delete(ctx context.Context, id string) error {
	project, err := m.store.Get(id)
	if err != nil {
		return err
	}

	if m.orch != nil && project.Type == models.TypeHosted {
		if err := m.orch.Destroy(ctx, id); err != nil {
			m.log.Warn("runtime teardown failed, deleting project anyway",
				zap.String("project", id),
				zap.Error(err))
		}
	}

	if project.Type == models.TypeHosted {
		if err := os.RemoveAll(m.Dir(id)); err != nil {
			return fmt.Errorf("%w: remove project directory: %v", apperr.ErrIO, err)
		}
	}

	if _, err := m.store.Delete(id); err != nil {
		return err
	}

	m.log.Info("project deleted", zap.String("project", id))
	return nil
}

func (m *Manager) view(project *models.Project) *models.ProjectView {
	view := &models.ProjectView{Project: *project}
	if project.Type == models.TypeExternal {
		view.IsLive = project.ExternalURL != ""
		return view
	}
	view.HasFiles = m.hasFiles(project.ID)
	view.IsLive = view.HasFiles
	return view
}

// hasFiles never assumes the directory exists: a registered project whose
// directory was never populated simply has no files.
func (m *Manager) hasFiles(projectID string) bool {
	entries, err := os.ReadDir(m.Dir(projectID))
	if err != nil {
		return false
	}
	return len(entries) > 0
}

func (m *Manager) newUniqueID() (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		id, err := hashgen.NewID()
		if err != nil {
			return "", fmt.Errorf("%w: generate project id: %v", apperr.ErrIO, err)
		}
		if _, err := m.store.Get(id); errors.Is(err, apperr.ErrNotFound) {
			return id, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: exhausted retries generating a unique project id", apperr.ErrConflict)
}

func (m *Manager) newUniquePublicHash() (string, error) {
	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		hash, err := hashgen.NewPublicHash()
		if err != nil {
			return "", fmt.Errorf("%w: generate public hash: %v", apperr.ErrIO, err)
		}
		if _, err := m.store.GetByPublicHash(hash); errors.Is(err, apperr.ErrNotFound) {
			return hash, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: exhausted retries generating a unique public hash", apperr.ErrConflict)
}
