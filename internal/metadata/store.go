// Package metadata owns the registry document: a single JSON file mapping
// project IDs to project records. No other component reads or writes it.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/moby/sys/atomicwriter"
	"go.uber.org/zap"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/pkg/models"
)

// document is the persisted registry shape.
type document struct {
	Projects map[string]*models.Project `json:"projects"`
}

// Store performs a full load-mutate-save cycle per mutating call. Mutations
// are serialized behind the write lock so concurrent writers can never load
// the same old document and silently drop each other's changes.
type Store struct {
	path string
	mu   sync.RWMutex
	log  *zap.Logger
}

// NewStore creates a store persisting to the given file path. The parent
// directory is created if absent; the document itself is created lazily on
// first mutation.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create metadata directory: %v", apperr.ErrIO, err)
		}
	}
	return &Store{path: path, log: log}, nil
}

// Get returns the project with the given ID.
func (s *Store) Get(id string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	project, ok := doc.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, id)
	}
	return project, nil
}

// GetByPublicHash returns the hosted project exposed under the given public
// hash. External projects carry no hash and are never matched.
func (s *Store) GetByPublicHash(hash string) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, project := range doc.Projects {
		if project.PublicHash != "" && project.PublicHash == hash {
			return project, nil
		}
	}
	return nil, fmt.Errorf("%w: public hash %s", apperr.ErrNotFound, hash)
}

// List returns all projects ordered by creation time.
func (s *Store) List() ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	projects := make([]*models.Project, 0, len(doc.Projects))
	for _, project := range doc.Projects {
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].CreatedAt.Equal(projects[j].CreatedAt) {
			return projects[i].ID < projects[j].ID
		}
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}

// Create inserts a new record and assigns its timestamps. The generator
// makes ID collisions practically impossible, but the store still rejects a
// duplicate ID rather than overwrite an existing record.
func (s *Store) Create(project *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, exists := doc.Projects[project.ID]; exists {
		return nil, fmt.Errorf("%w: project %s already exists", apperr.ErrConflict, project.ID)
	}

	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	doc.Projects[project.ID] = project

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return project, nil
}

// Update merges the supplied fields into an existing record and refreshes
// its updatedAt timestamp.
func (s *Store) Update(id string, patch models.ProjectUpdate) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	project, ok := doc.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, id)
	}

	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.ExternalURL != nil {
		project.ExternalURL = *patch.ExternalURL
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return project, nil
}

// SetRuntime records a runtime state transition. Port and access URL are
// stored only for the running state and cleared otherwise.
func (s *Store) SetRuntime(id string, state models.RuntimeState, port, accessURL string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	project, ok := doc.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, id)
	}

	project.RuntimeState = state
	if state == models.RuntimeRunning {
		project.Port = port
		project.AccessURL = accessURL
	} else {
		project.Port = ""
		project.AccessURL = ""
	}
	project.UpdatedAt = time.Now().UTC()

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete removes a record and returns it.
func (s *Store) Delete(id string) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	project, ok := doc.Projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, id)
	}
	delete(doc.Projects, id)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return project, nil
}

// load reads the document from disk. A missing file is an empty registry.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Projects: make(map[string]*models.Project)}, nil
		}
		return nil, fmt.Errorf("%w: read metadata document: %v", apperr.ErrIO, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse metadata document: %v", apperr.ErrIO, err)
	}
	if doc.Projects == nil {
		doc.Projects = make(map[string]*models.Project)
	}
	return &doc, nil
}

// save writes the document through a temporary file and atomic rename so a
// crash mid-write can never leave a partially written registry.
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode metadata document: %v", apperr.ErrIO, err)
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: write metadata document: %v", apperr.ErrIO, err)
	}
	s.log.Debug("metadata document saved", zap.String("path", s.path), zap.Int("bytes", len(data)))
	return nil
}
