// Package runtime manages the isolated container instance that can serve a
// hosted project's files on a dynamically assigned port.
package runtime

import (
	"context"
	"io"
)

// Instance is a container instance known to the backend.
type Instance struct {
	ID      string
	Name    string
	Running bool
}

// Status is the inspected state of an instance.
type Status struct {
	Running  bool
	HostPort string
}

// InstanceConfig describes a new instance bound read-only to a project's
// directory.
type InstanceConfig struct {
	Name       string
	ProjectID  string
	ContentDir string
}

// Backend is the container runtime collaborator the orchestrator drives.
// Implementations must treat instance names as the unit of identity.
type Backend interface {
	// FindInstance returns the instance with the given name, or nil if
	// no such instance exists.
	FindInstance(ctx context.Context, name string) (*Instance, error)

	// CreateInstance creates a stopped instance with a dynamically
	// assigned host port and a restart-unless-stopped policy.
	CreateInstance(ctx context.Context, cfg InstanceConfig) (*Instance, error)

	// StartInstance activates an instance. Activating an already active
	// instance is not an error.
	StartInstance(ctx context.Context, id string) error

	// StopInstance deactivates an instance. Deactivating an already
	// inactive instance is not an error.
	StopInstance(ctx context.Context, id string) error

	// RemoveInstance deletes an instance. Removing a missing instance is
	// not an error.
	RemoveInstance(ctx context.Context, id string) error

	// InspectInstance reports whether the instance is active and which
	// host port it is published on.
	InspectInstance(ctx context.Context, id string) (*Status, error)

	// InstanceLogs streams the instance's log output until ctx is done.
	InstanceLogs(ctx context.Context, id string) (io.ReadCloser, error)

	// EnsureImage makes the serving image available locally.
	EnsureImage(ctx context.Context) error

	Close() error
}
