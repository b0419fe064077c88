package runtime

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/staticnest/staticnest/internal/apperr"
	"github.com/staticnest/staticnest/internal/metadata"
	"github.com/staticnest/staticnest/pkg/models"
)

// Orchestrator drives the per-project runtime state machine. Start and Stop
// for the same project are serialized behind a per-project lock; operations
// on distinct projects proceed concurrently.
type Orchestrator struct {
	backend     Backend
	store       *metadata.Store
	projectsDir string
	baseURL     string
	timeout     time.Duration
	log         *zap.Logger

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewOrchestrator creates an orchestrator. timeout bounds every backend
// call so a hanging daemon cannot wedge a request.
func NewOrchestrator(backend Backend, store *metadata.Store, projectsDir, baseURL string, timeout time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		backend:     backend,
		store:       store,
		projectsDir: projectsDir,
		baseURL:     baseURL,
		timeout:     timeout,
		log:         log,
		locks:       make(map[string]*semaphore.Weighted),
	}
}

// Start transitions a hosted project to running. Idempotent: an existing
// instance is activated in place, never recreated, and starting an already
// running project returns the same persisted state.
func (o *Orchestrator) Start(ctx context.Context, projectID string) (*models.Project, error) {
	if err := o.lock(ctx, projectID); err != nil {
		return nil, err
	}
	defer o.unlock(projectID)

	project, err := o.store.Get(projectID)
	if err != nil {
		return nil, err
	}
	if project.Type != models.TypeHosted {
		return nil, fmt.Errorf("%w: external projects have no runtime instance", apperr.ErrValidation)
	}

	bctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	name := o.instanceName(projectID)
	instance, err := o.backend.FindInstance(bctx, name)
	if err != nil {
		return nil, external("find instance", err)
	}

	if instance == nil {
		instance, err = o.backend.CreateInstance(bctx, InstanceConfig{
			Name:       name,
			ProjectID:  projectID,
			ContentDir: filepath.Join(o.projectsDir, projectID),
		})
		if err != nil {
			return nil, external("create instance", err)
		}
	}

	if !instance.Running {
		if err := o.backend.StartInstance(bctx, instance.ID); err != nil {
			return nil, external("start instance", err)
		}
	}

	status, err := o.backend.InspectInstance(bctx, instance.ID)
	if err != nil {
		return nil, external("inspect instance", err)
	}
	if !status.Running || status.HostPort == "" {
		return nil, external("inspect instance", fmt.Errorf("instance %s has no published port", name))
	}

	o.log.Info("runtime instance running",
		zap.String("project", projectID),
		zap.String("instance", name),
		zap.String("port", status.HostPort))

	return o.store.SetRuntime(projectID, models.RuntimeRunning, status.HostPort, o.accessURL(status.HostPort))
}

// Stop transitions a project to stopped. An instance the backend reports as
// already inactive, or one that does not exist at all, counts as success.
func (o *Orchestrator) Stop(ctx context.Context, projectID string) (*models.Project, error) {
	if err := o.lock(ctx, projectID); err != nil {
		return nil, err
	}
	defer o.unlock(projectID)

	project, err := o.store.Get(projectID)
	if err != nil {
		return nil, err
	}
	if project.Type != models.TypeHosted {
		return nil, fmt.Errorf("%w: external projects have no runtime instance", apperr.ErrValidation)
	}

	bctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	name := o.instanceName(projectID)
	instance, err := o.backend.FindInstance(bctx, name)
	if err != nil {
		return nil, external("find instance", err)
	}
	if instance != nil {
		if err := o.backend.StopInstance(bctx, instance.ID); err != nil {
			return nil, external("stop instance", err)
		}
	}

	o.log.Info("runtime instance stopped",
		zap.String("project", projectID),
		zap.String("instance", name))

	return o.store.SetRuntime(projectID, models.RuntimeStopped, "", "")
}

// Destroy tears down a project's instance during deletion: best-effort
// deactivate then remove. A missing instance is success. Callers log the
// returned error and proceed with deletion regardless.
func (o *Orchestrator) Destroy(ctx context.Context, projectID string) error {
	if err := o.lock(ctx, projectID); err != nil {
		return err
	}
	defer o.dropLock(projectID)

	bctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	name := o.instanceName(projectID)
	instance, err := o.backend.FindInstance(bctx, name)
	if err != nil {
		return external("find instance", err)
	}
	if instance == nil {
		return nil
	}

	if err := o.backend.StopInstance(bctx, instance.ID); err != nil {
		o.log.Warn("stop during destroy failed, removing anyway",
			zap.String("project", projectID),
			zap.Error(err))
	}
	if err := o.backend.RemoveInstance(bctx, instance.ID); err != nil {
		return external("remove instance", err)
	}

	o.log.Info("runtime instance removed",
		zap.String("project", projectID),
		zap.String("instance", name))
	return nil
}

// Logs streams the project's instance logs until ctx is done.
func (o *Orchestrator) Logs(ctx context.Context, projectID string) (io.ReadCloser, error) {
	project, err := o.store.Get(projectID)
	if err != nil {
		return nil, err
	}
	if project.Type != models.TypeHosted {
		return nil, fmt.Errorf("%w: external projects have no runtime instance", apperr.ErrValidation)
	}

	fctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	instance, err := o.backend.FindInstance(fctx, o.instanceName(projectID))
	if err != nil {
		return nil, external("find instance", err)
	}
	if instance == nil {
		return nil, fmt.Errorf("%w: project %s has no runtime instance", apperr.ErrNotFound, projectID)
	}

	reader, err := o.backend.InstanceLogs(ctx, instance.ID)
	if err != nil {
		return nil, external("instance logs", err)
	}
	return reader, nil
}

// instanceName derives the deterministic backend name from the internal
// project ID.
func (o *Orchestrator) instanceName(projectID string) string {
	return "staticnest-" + projectID
}

func (o *Orchestrator) accessURL(hostPort string) string {
	host := "localhost"
	if u, err := url.Parse(o.baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return fmt.Sprintf("http://%s:%s", host, hostPort)
}

// lock acquires the weight-1 semaphore for a project, respecting ctx.
func (o *Orchestrator) lock(ctx context.Context, projectID string) error {
	o.mu.Lock()
	sem, ok := o.locks[projectID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		o.locks[projectID] = sem
	}
	o.mu.Unlock()

	return sem.Acquire(ctx, 1)
}

func (o *Orchestrator) unlock(projectID string) {
	o.mu.Lock()
	sem := o.locks[projectID]
	o.mu.Unlock()

	if sem != nil {
		sem.Release(1)
	}
}

// dropLock releases the project's semaphore and forgets it. Used on destroy
// so lock entries do not accumulate for deleted projects; a later operation
// on a recreated ID gets a fresh semaphore.
func (o *Orchestrator) dropLock(projectID string) {
	o.mu.Lock()
	sem := o.locks[projectID]
	delete(o.locks, projectID)
	o.mu.Unlock()

	if sem != nil {
		sem.Release(1)
	}
}

func external(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", apperr.ErrExternalService, op, err)
}
