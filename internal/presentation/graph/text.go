package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
)

// Text produces a markdown report of the deployments: their tasks with
// deployed names and models, and their connections.
func Text(deployments []domain.Deployment, withPolicies bool) string {
	var sb strings.Builder
	sb.WriteString("# Deployments\n")

	if len(deployments) == 0 {
		sb.WriteString("\n_No deployments._\n")
		return sb.String()
	}

	for _, d := range deployments {
		names := deployedNames(d)
		sb.WriteString(fmt.Sprintf("\n## %s\n\n", d.Name))

		sb.WriteString("| Task | Deployed as | Model |\n")
		sb.WriteString("|------|-------------|-------|\n")
		for _, t := range d.Tasks {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s |\n", t.Name, names[t.Name], t.TaskModel))
		}

		if len(d.Connections) > 0 {
			sb.WriteString("\n### Connections\n\n")
			for _, c := range d.Connections {
				line := fmt.Sprintf("- `%s.%s` -> `%s.%s`", c.From, c.FromPort, c.To, c.ToPort)
				if withPolicies && c.Policy != "" {
					line += fmt.Sprintf(" (%s)", c.Policy)
				}
				sb.WriteString(line + "\n")
			}
		}

		if len(d.Mappings) > 0 {
			sb.WriteString("\n### Mappings\n\n")
			logical := make([]string, 0, len(d.Mappings))
			for name := range d.Mappings {
				logical = append(logical, name)
			}
			sort.Strings(logical)
			for _, name := range logical {
				sb.WriteString(fmt.Sprintf("- %s => %s\n", name, d.Mappings[name]))
			}
		}
	}
	return sb.String()
}
