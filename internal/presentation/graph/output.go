package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
)

// Format is an export format accepted by --output.
type Format string

const (
	FormatText    Format = "txt"
	FormatDot     Format = "dot"
	FormatSVG     Format = "svg"
	FormatPNG     Format = "png"
	FormatMermaid Format = "mermaid"
)

// DefaultBase names the output files when neither a file nor a robot is given.
const DefaultBase = "instanciate"

// ErrUnknownFormat is returned by ParseOutput for unsupported formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the supported formats.
var Formats = []Format{FormatText, FormatDot, FormatSVG, FormatPNG, FormatMermaid}

// Output is a parsed TYPE[:file] output specification.
type Output struct {
	Format Format
	Base   string
}

// ParseOutput parses "TYPE[:file]". The type is case-insensitive.
func ParseOutput(arg string) (Output, error) {
	typ, base, _ := strings.Cut(arg, ":")
	f := Format(strings.ToLower(strings.TrimSpace(typ)))
	if f == "" {
		f = FormatText
	}
	for _, known := range Formats {
		if f == known {
			return Output{Format: f, Base: base}, nil
		}
	}
	return Output{}, fmt.Errorf("%w: %q (can be: txt, dot, svg, png, mermaid)", ErrUnknownFormat, typ)
}

// WithDefaultBase fills in the file base name for file formats: the robot
// name, else the robot type, else DefaultBase.
func (o Output) WithDefaultBase(robotName, robotType string) Output {
	if o.Format == FormatText || o.Base != "" {
		return o
	}
	switch {
	case robotName != "":
		o.Base = robotName
	case robotType != "":
		o.Base = robotType
	default:
		o.Base = DefaultBase
	}
	return o
}

// Extension is the file extension of the format.
func (o Output) Extension() string {
	if o.Format == FormatMermaid {
		return "mmd"
	}
	return string(o.Format)
}

// Files returns the hierarchy and dataflow file names.
func (o Output) Files() (hierarchy, dataflow string) {
	return fmt.Sprintf("%s-hierarchy.%s", o.Base, o.Extension()),
		fmt.Sprintf("%s-dataflow.%s", o.Base, o.Extension())
}

// RenderFunc converts dot source into the given Graphviz output format.
type RenderFunc func(ctx context.Context, format string, src []byte) ([]byte, error)

// RenderDot runs the Graphviz "dot" binary.
func RenderDot(ctx context.Context, format string, src []byte) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "dot", "-T"+format)
	cmd.Stdin = bytes.NewReader(src)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("dot -T%s: %w: %s", format, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Exporter writes deployment exports.
type Exporter struct {
	// Dir is where files are written. Empty means the working directory.
	Dir string

	// Render converts dot to svg/png. Defaults to RenderDot.
	Render RenderFunc

	// Markdown renders the txt report before it is printed. Optional.
	Markdown func(string) (string, error)
}

// Export writes deployments in the given output. The txt format goes to w;
// every other format writes the hierarchy and dataflow files, whose paths
// are returned.
func (e Exporter) Export(ctx context.Context, out Output, deployments []domain.Deployment, withPolicies bool, w io.Writer) ([]string, error) {
	if out.Format == FormatText {
		report := Text(deployments, withPolicies)
		if e.Markdown != nil {
			rendered, err := e.Markdown(report)
			if err != nil {
				return nil, fmt.Errorf("render report: %w", err)
			}
			report = rendered
		}
		_, err := io.WriteString(w, report)
		return nil, err
	}

	var hierarchy, dataflow []byte
	switch out.Format {
	case FormatMermaid:
		hierarchy = []byte(MermaidHierarchy(deployments))
		dataflow = []byte(Mermaid(deployments, withPolicies))
	case FormatDot, FormatSVG, FormatPNG:
		hierarchy = []byte(Hierarchy(deployments))
		dataflow = []byte(Dataflow(deployments, withPolicies))
		if out.Format != FormatDot {
			render := e.Render
			if render == nil {
				render = RenderDot
			}
			var err error
			if hierarchy, err = render(ctx, string(out.Format), hierarchy); err != nil {
				return nil, err
			}
			if dataflow, err = render(ctx, string(out.Format), dataflow); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, out.Format)
	}

	if out.Base == "" {
		out.Base = DefaultBase
	}
	hierarchyFile, dataflowFile := out.Files()
	hierarchyFile = filepath.Join(e.Dir, hierarchyFile)
	dataflowFile = filepath.Join(e.Dir, dataflowFile)

	if err := os.WriteFile(hierarchyFile, hierarchy, 0644); err != nil {
		return nil, fmt.Errorf("write hierarchy: %w", err)
	}
	if err := os.WriteFile(dataflowFile, dataflow, 0644); err != nil {
		return nil, fmt.Errorf("write dataflow: %w", err)
	}
	return []string{hierarchyFile, dataflowFile}, nil
}
