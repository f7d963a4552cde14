package loam

import (
	"github.com/aretw0/deployd/pkg/domain"
)

// DeploymentMetadata is the front matter of a deployment document.
// It uses "mapstructure" tags to match the YAML keys of the file format.
type DeploymentMetadata struct {
	Name        string                `json:"name" mapstructure:"name"`
	Description string                `json:"description" mapstructure:"description"`
	Tasks       []domain.TaskActivity `json:"tasks" mapstructure:"tasks"`
	Connections []domain.Connection   `json:"connections" mapstructure:"connections"`
	Mappings    map[string]string     `json:"mappings" mapstructure:"mappings"`

	// Tags are free-form labels, e.g. the robot a deployment belongs to.
	Tags []string `json:"tags" mapstructure:"tags"`
}

// Deployment converts the metadata into a model. id names it when the
// front matter does not.
func (m DeploymentMetadata) Deployment(id string) domain.Deployment {
	name := m.Name
	if name == "" {
		name = trimExtension(id)
	}
	return domain.Deployment{
		Name:        name,
		Tasks:       m.Tasks,
		Connections: m.Connections,
		Mappings:    m.Mappings,
	}
}
