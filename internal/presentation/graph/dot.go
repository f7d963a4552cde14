package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
)

// Hierarchy renders which tasks each deployment contains as a dot digraph.
func Hierarchy(deployments []domain.Deployment) string {
	var sb strings.Builder
	sb.WriteString("digraph hierarchy {\n")
	sb.WriteString("    rankdir=TB;\n")
	sb.WriteString("    node [fontname=\"Helvetica\"];\n")

	for _, d := range deployments {
		names := deployedNames(d)
		root := sanitizeID(d.Name)
		sb.WriteString(fmt.Sprintf("    %s [shape=box3d, label=%s];\n", root, quote(d.Name)))
		for _, t := range d.Tasks {
			id := nodeID(d.Name, t.Name)
			sb.WriteString(fmt.Sprintf("    %s [shape=box, label=%s];\n", id, quote(names[t.Name]+"\n"+t.TaskModel)))
			sb.WriteString(fmt.Sprintf("    %s -> %s;\n", root, id))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// Dataflow renders the connections between tasks as a dot digraph, one
// cluster per deployment. Connection policies are added to the edge labels
// when withPolicies is set.
func Dataflow(deployments []domain.Deployment, withPolicies bool) string {
	var sb strings.Builder
	sb.WriteString("digraph dataflow {\n")
	sb.WriteString("    rankdir=LR;\n")
	sb.WriteString("    node [shape=record, fontname=\"Helvetica\"];\n")

	for i, d := range deployments {
		names := deployedNames(d)
		sb.WriteString(fmt.Sprintf("    subgraph cluster_%d {\n", i))
		sb.WriteString(fmt.Sprintf("        label=%s;\n", quote(d.Name)))
		for _, t := range d.Tasks {
			sb.WriteString(fmt.Sprintf("        %s [label=%s];\n", nodeID(d.Name, t.Name), quote(names[t.Name])))
		}
		sb.WriteString("    }\n")

		for _, c := range d.Connections {
			edge := fmt.Sprintf("    %s -> %s", nodeID(d.Name, c.From), nodeID(d.Name, c.To))
			if label := portLabel(c, withPolicies); label != "" {
				edge += fmt.Sprintf(" [label=%s]", quote(label))
			}
			sb.WriteString(edge + ";\n")
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

// quote returns s as a dot string literal.
func quote(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return "\"" + s + "\""
}
