// Package graph exports deployment models as Graphviz dot, Mermaid and
// markdown reports.
package graph

import (
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
)

// deployedNames returns the logical -> deployed table of d.
// A model whose mappings collide falls back to its logical names.
func deployedNames(d domain.Deployment) map[string]string {
	names, err := naming.Apply(naming.ForDeployment(d, naming.Identity{}), d.TaskNames())
	if err != nil {
		names = make(map[string]string, len(d.Tasks))
		for _, t := range d.Tasks {
			names[t.Name] = t.Name
		}
	}
	return names
}

// nodeID is the identifier of a task node, unique across deployments.
func nodeID(deployment, task string) string {
	return sanitizeID(deployment + "/" + task)
}

func sanitizeID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

// portLabel describes the ports of a connection, with its policy when asked to.
func portLabel(c domain.Connection, withPolicies bool) string {
	label := c.FromPort + " -> " + c.ToPort
	if c.FromPort == "" && c.ToPort == "" {
		label = ""
	}
	if withPolicies && c.Policy != "" {
		if label == "" {
			return "[" + c.Policy + "]"
		}
		label += " [" + c.Policy + "]"
	}
	return label
}
