package devstore

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
)

const (
	// Port range for store containers (allows 100 concurrent projects)
	startPort = 6379
	endPort   = 6478
)

// FindNextAvailablePort returns the first port from 6379 that no gauge
// container claims and that can be bound on the host.
func FindNextAvailablePort(ctx context.Context, cli API) (int, error) {
	return findPort(ctx, cli, isPortBindable)
}

func findPort(ctx context.Context, cli API, bindable func(int) bool) (int, error) {
	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", LabelManaged+"=true")),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to query Docker containers: %w", err)
	}

	used := make(map[int]bool)
	for _, c := range containers {
		if port, err := strconv.Atoi(c.Labels[LabelPort]); err == nil {
			used[port] = true
		}
	}

	for port := startPort; port <= endPort; port++ {
		if !used[port] && bindable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available store ports (range %d-%d exhausted)", startPort, endPort)
}

func isPortBindable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// Host returns the hostname published ports are reachable on. Inside a
// container that is the Docker host, not localhost.
func Host() string {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "host.docker.internal"
	}
	return "localhost"
}

// URL returns the database URL for a store published on port.
func URL(port int) string {
	return fmt.Sprintf("redis://%s:%d", Host(), port)
}
