package runtime

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"go.uber.org/zap"
)

const (
	// servePort is the port the static file server listens on inside the
	// container. It is published to a dynamically assigned host port.
	servePort = "80/tcp"

	contentMount = "/usr/share/nginx/html"

	managedByLabel = "staticnest"
)

// DockerBackend implements Backend against the local Docker daemon.
type DockerBackend struct {
	client *client.Client
	image  string
	log    *zap.Logger
}

// NewDockerBackend connects to the daemon using the standard environment
// configuration.
func NewDockerBackend(img string, log *zap.Logger) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerBackend{client: cli, image: img, log: log}, nil
}

func (b *DockerBackend) FindInstance(ctx context.Context, name string) (*Instance, error) {
	// The name filter matches substrings; compare against the exact
	// slash-prefixed name Docker reports.
	summaries, err := b.client.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	for _, summary := range summaries {
		for _, n := range summary.Names {
			if strings.TrimPrefix(n, "/") == name {
				return &Instance{
					ID:      summary.ID,
					Name:    name,
					Running: summary.State == "running",
				}, nil
			}
		}
	}
	return nil, nil
}

func (b *DockerBackend) CreateInstance(ctx context.Context, cfg InstanceConfig) (*Instance, error) {
	contentDir, err := filepath.Abs(cfg.ContentDir)
	if err != nil {
		return nil, fmt.Errorf("resolve content directory: %w", err)
	}

	containerConfig := &container.Config{
		Image: b.image,
		Labels: map[string]string{
			"managed-by": managedByLabel,
			"project-id": cfg.ProjectID,
		},
		ExposedPorts: nat.PortSet{
			servePort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			servePort: []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
		RestartPolicy: container.RestartPolicy{
			Name: container.RestartPolicyUnlessStopped,
		},
		Mounts: []mount.Mount{
			{
				Type:     mount.TypeBind,
				Source:   contentDir,
				Target:   contentMount,
				ReadOnly: true,
			},
		},
	}

	resp, err := b.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("create container %s: %w", cfg.Name, err)
	}

	b.log.Info("container created",
		zap.String("name", cfg.Name),
		zap.String("container_id", resp.ID))

	return &Instance{ID: resp.ID, Name: cfg.Name, Running: false}, nil
}

func (b *DockerBackend) StartInstance(ctx context.Context, id string) error {
	if err := b.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		if cerrdefs.IsNotModified(err) {
			return nil
		}
		return fmt.Errorf("start container: %w", err)
	}
	return nil
}

func (b *DockerBackend) StopInstance(ctx context.Context, id string) error {
	timeout := 10
	err := b.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
	if err != nil {
		// Already stopped or already gone both count as stopped.
		if cerrdefs.IsNotModified(err) || cerrdefs.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("stop container: %w", err)
	}
	return nil
}

func (b *DockerBackend) RemoveInstance(ctx context.Context, id string) error {
	err := b.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("remove container: %w", err)
	}
	return nil
}

func (b *DockerBackend) InspectInstance(ctx context.Context, id string) (*Status, error) {
	inspect, err := b.client.ContainerInspect(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}

	status := &Status{Running: inspect.State != nil && inspect.State.Running}
	if bindings, ok := inspect.NetworkSettings.Ports[servePort]; ok && len(bindings) > 0 {
		status.HostPort = bindings[0].HostPort
	}
	return status, nil
}

func (b *DockerBackend) InstanceLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	raw, err := b.client.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       "100",
	})
	if err != nil {
		return nil, fmt.Errorf("container logs: %w", err)
	}

	// Demultiplex the raw stream; nginx containers run without a TTY.
	pr, pw := io.Pipe()
	go func() {
		_, err := stdcopy.StdCopy(pw, pw, raw)
		raw.Close()
		pw.CloseWithError(err)
	}()
	return pr, nil
}

func (b *DockerBackend) EnsureImage(ctx context.Context) error {
	images, err := b.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("list images: %w", err)
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == b.image {
				return nil
			}
		}
	}

	b.log.Info("pulling serving image", zap.String("image", b.image))
	reader, err := b.client.ImagePull(ctx, b.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", b.image, err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

func (b *DockerBackend) Close() error {
	return b.client.Close()
}
