// Package devstore runs a throwaway Redis container that stands in for the
// shared store during local development.
package devstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"
)

// DefaultImage is the store image used when none is configured.
const DefaultImage = "redis:7-alpine"

const stopTimeoutSeconds = 10

var (
	// ErrAlreadyRunning is returned by Up when the project has a store container.
	ErrAlreadyRunning = errors.New("dev store already exists")
	// ErrNotFound is returned by Down when the project has no store container.
	ErrNotFound = errors.New("no dev store found")
)

// API is the part of the Docker client devstore uses.
type API interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options types.ImagePullOptions) (io.ReadCloser, error)
}

// NewClient creates a Docker client and checks the daemon answers.
func NewClient(ctx context.Context) (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf(`Docker daemon not accessible: %w

Ensure Docker is running:
  • macOS: Docker Desktop
  • Linux: sudo systemctl start docker`, err)
	}
	return cli, nil
}

// Instance describes a running dev store.
type Instance struct {
	Project string
	Name    string
	ID      string
	RunID   string
	Port    int
	URL     string
	Status  Status
}

// Manager starts and stops dev stores.
type Manager struct {
	cli   API
	image string
	log   *log.Entry
}

// NewManager returns a Manager using image, or DefaultImage when empty.
func NewManager(cli API, image string) *Manager {
	if image == "" {
		image = DefaultImage
	}
	return &Manager{cli: cli, image: image, log: log.WithField("component", "devstore")}
}

func projectFilter(project string) filters.Args {
	return filters.NewArgs(
		filters.Arg("label", LabelManaged+"=true"),
		filters.Arg("label", fmt.Sprintf("%s=%s", LabelProject, project)),
	)
}

func (m *Manager) list(ctx context.Context, project string) ([]types.Container, error) {
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: projectFilter(project)})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	return containers, nil
}

// Up starts a store container for project on the next free port.
func (m *Manager) Up(ctx context.Context, project string) (*Instance, error) {
	existing, err := m.list(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, fmt.Errorf("%w for project '%s'", ErrAlreadyRunning, project)
	}

	port, err := FindNextAvailablePort(ctx, m.cli)
	if err != nil {
		return nil, err
	}

	inst := &Instance{
		Project: project,
		Name:    ContainerName(project),
		RunID:   GenerateRunID(),
		Port:    port,
		URL:     URL(port),
	}

	cfg := &container.Config{
		Image:  m.image,
		Labels: BuildLabels(project, inst.RunID, port),
		ExposedPorts: nat.PortSet{
			"6379/tcp": struct{}{},
		},
	}
	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			"6379/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: fmt.Sprintf("%d", port)}},
		},
	}

	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, inst.Name)
	if client.IsErrNotFound(err) {
		if err := m.pull(ctx); err != nil {
			return nil, err
		}
		resp, err = m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, inst.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create store container: %w", err)
	}
	inst.ID = resp.ID

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("failed to start store container: %w", err)
	}
	inst.Status = StatusRunning

	m.log.WithFields(log.Fields{"project": project, "port": port, "run_id": inst.RunID}).Info("Dev store started")
	return inst, nil
}

func (m *Manager) pull(ctx context.Context) error {
	m.log.WithField("image", m.image).Info("Pulling store image")
	reader, err := m.cli.ImagePull(ctx, m.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull %s: %w", m.image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("failed to pull %s: %w", m.image, err)
	}
	return nil
}

// Down stops and removes every store container of project and returns
// their names.
func (m *Manager) Down(ctx context.Context, project string) ([]string, error) {
	containers, err := m.list(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w for project '%s'", ErrNotFound, project)
	}

	timeout := stopTimeoutSeconds
	var removed []string
	for _, c := range containers {
		name := containerName(c)
		if err := m.cli.ContainerStop(ctx, c.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			// might already be stopped
			m.log.WithError(err).WithField("container", name).Warn("Failed to stop container")
		}
		if err := m.cli.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true, RemoveVolumes: true}); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", name, err)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

// Find returns the project's dev store, or ErrNotFound.
func (m *Manager) Find(ctx context.Context, project string) (*Instance, error) {
	containers, err := m.list(ctx, project)
	if err != nil {
		return nil, err
	}
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w for project '%s'", ErrNotFound, project)
	}

	c := containers[0]
	inst := &Instance{
		Project: project,
		Name:    containerName(c),
		ID:      c.ID,
		RunID:   c.Labels[LabelRunID],
		Status:  DetermineStatus(containers),
	}
	if port, err := strconv.Atoi(c.Labels[LabelPort]); err == nil {
		inst.Port = port
		inst.URL = URL(port)
	}
	return inst, nil
}

func containerName(c types.Container) string {
	if len(c.Names) > 0 {
		// Docker reports names with a leading slash
		if n := c.Names[0]; len(n) > 0 && n[0] == '/' {
			return n[1:]
		}
		return c.Names[0]
	}
	return c.ID
}
