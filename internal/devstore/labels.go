package devstore

import (
	"fmt"

	"github.com/google/uuid"
)

// Label keys put on every container gauge starts.
const (
	LabelManaged = "gauge.managed"
	LabelProject = "gauge.project"
	LabelRunID   = "gauge.run_id"
	LabelPort    = "gauge.redis.port"
)

// BuildLabels returns the label set for a project's store container.
func BuildLabels(project, runID string, port int) map[string]string {
	return map[string]string{
		LabelManaged: "true",
		LabelProject: project,
		LabelRunID:   runID,
		LabelPort:    fmt.Sprintf("%d", port),
	}
}

// GenerateRunID creates a new id for one `gauge dev up`.
func GenerateRunID() string {
	return uuid.New().String()
}

// ContainerName returns the store container name for a project.
func ContainerName(project string) string {
	return fmt.Sprintf("gauge-redis-%s", project)
}
