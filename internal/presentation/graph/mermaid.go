package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
)

// MermaidHierarchy produces a Mermaid flowchart of deployments and their tasks.
// Deployments are drawn as ((circles)), tasks as [rectangles].
func MermaidHierarchy(deployments []domain.Deployment) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, d := range deployments {
		names := deployedNames(d)
		root := sanitizeID(d.Name)
		sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", root, escapeMermaid(d.Name)))
		for _, t := range d.Tasks {
			id := nodeID(d.Name, t.Name)
			sb.WriteString(fmt.Sprintf("    %s[\"%s <br/> %s\"]\n", id, escapeMermaid(names[t.Name]), escapeMermaid(t.TaskModel)))
			sb.WriteString(fmt.Sprintf("    %s --> %s\n", root, id))
		}
	}
	return sb.String()
}

// Mermaid produces a Mermaid dataflow flowchart with one subgraph per deployment.
func Mermaid(deployments []domain.Deployment, withPolicies bool) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for _, d := range deployments {
		names := deployedNames(d)
		sb.WriteString(fmt.Sprintf("    subgraph %s[\"%s\"]\n", sanitizeID(d.Name), escapeMermaid(d.Name)))
		for _, t := range d.Tasks {
			sb.WriteString(fmt.Sprintf("        %s[\"%s\"]\n", nodeID(d.Name, t.Name), escapeMermaid(names[t.Name])))
		}
		sb.WriteString("    end\n")

		for _, c := range d.Connections {
			arrow := "-->"
			if label := portLabel(c, withPolicies); label != "" {
				arrow = fmt.Sprintf("-- \"%s\" -->", escapeMermaid(label))
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", nodeID(d.Name, c.From), arrow, nodeID(d.Name, c.To)))
		}
	}
	return sb.String()
}

// Escape double quotes for Mermaid labels
func escapeMermaid(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
