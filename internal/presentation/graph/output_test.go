package graph_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/deployd/internal/presentation/graph"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutput(t *testing.T) {
	t.Run("Type Only", func(t *testing.T) {
		out, err := graph.ParseOutput("DOT")
		require.NoError(t, err)
		assert.Equal(t, graph.Output{Format: graph.FormatDot}, out)
	})

	t.Run("Type And File", func(t *testing.T) {
		out, err := graph.ParseOutput("svg:robot")
		require.NoError(t, err)
		assert.Equal(t, graph.Output{Format: graph.FormatSVG, Base: "robot"}, out)

		hierarchy, dataflow := out.Files()
		assert.Equal(t, "robot-hierarchy.svg", hierarchy)
		assert.Equal(t, "robot-dataflow.svg", dataflow)
	})

	t.Run("Empty Defaults To Text", func(t *testing.T) {
		out, err := graph.ParseOutput("")
		require.NoError(t, err)
		assert.Equal(t, graph.FormatText, out.Format)
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := graph.ParseOutput("pdf")
		assert.ErrorIs(t, err, graph.ErrUnknownFormat)
	})

	t.Run("Mermaid Extension", func(t *testing.T) {
		out, err := graph.ParseOutput("mermaid:x")
		require.NoError(t, err)
		hierarchy, _ := out.Files()
		assert.Equal(t, "x-hierarchy.mmd", hierarchy)
	})
}

func TestOutput_WithDefaultBase(t *testing.T) {
	dot := graph.Output{Format: graph.FormatDot}

	assert.Equal(t, "rover", dot.WithDefaultBase("rover", "asguard").Base)
	assert.Equal(t, "asguard", dot.WithDefaultBase("", "asguard").Base)
	assert.Equal(t, graph.DefaultBase, dot.WithDefaultBase("", "").Base)
	assert.Equal(t, "given", graph.Output{Format: graph.FormatDot, Base: "given"}.WithDefaultBase("rover", "").Base)
	assert.Empty(t, graph.Output{Format: graph.FormatText}.WithDefaultBase("rover", "").Base)
}

func TestExporter_Export(t *testing.T) {
	deployments := []domain.Deployment{navModel()}
	ctx := context.Background()

	t.Run("Text Goes To Writer", func(t *testing.T) {
		var buf bytes.Buffer
		e := graph.Exporter{Markdown: func(s string) (string, error) { return strings.ToUpper(s), nil }}

		files, err := e.Export(ctx, graph.Output{Format: graph.FormatText}, deployments, true, &buf)
		require.NoError(t, err)
		assert.Empty(t, files)
		assert.Contains(t, buf.String(), "## NAV")
	})

	t.Run("Dot Files", func(t *testing.T) {
		dir := t.TempDir()
		e := graph.Exporter{Dir: dir}

		files, err := e.Export(ctx, graph.Output{Format: graph.FormatDot, Base: "rover"}, deployments, true, nil)
		require.NoError(t, err)
		require.Equal(t, []string{
			filepath.Join(dir, "rover-hierarchy.dot"),
			filepath.Join(dir, "rover-dataflow.dot"),
		}, files)

		data, err := os.ReadFile(files[0])
		require.NoError(t, err)
		assert.Contains(t, string(data), "digraph hierarchy")

		data, err = os.ReadFile(files[1])
		require.NoError(t, err)
		assert.Contains(t, string(data), "buffer:20")
	})

	t.Run("Rendered Files", func(t *testing.T) {
		dir := t.TempDir()
		var formats []string
		e := graph.Exporter{
			Dir: dir,
			Render: func(_ context.Context, format string, src []byte) ([]byte, error) {
				formats = append(formats, format)
				return append([]byte("<"+format+">"), src[:7]...), nil
			},
		}

		files, err := e.Export(ctx, graph.Output{Format: graph.FormatSVG}, deployments, false, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"svg", "svg"}, formats)
		assert.Equal(t, filepath.Join(dir, "instanciate-dataflow.svg"), files[1])

		data, err := os.ReadFile(files[0])
		require.NoError(t, err)
		assert.Equal(t, "<svg>digraph", string(data))
	})

	t.Run("Render Failure", func(t *testing.T) {
		errDot := errors.New("dot not found")
		e := graph.Exporter{
			Dir: t.TempDir(),
			Render: func(context.Context, string, []byte) ([]byte, error) {
				return nil, errDot
			},
		}

		_, err := e.Export(ctx, graph.Output{Format: graph.FormatPNG, Base: "x"}, deployments, true, nil)
		assert.ErrorIs(t, err, errDot)
	})

	t.Run("Mermaid Files", func(t *testing.T) {
		dir := t.TempDir()
		files, err := graph.Exporter{Dir: dir}.Export(ctx, graph.Output{Format: graph.FormatMermaid, Base: "m"}, deployments, true, nil)
		require.NoError(t, err)

		data, err := os.ReadFile(files[1])
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "graph LR"))
	})
}
