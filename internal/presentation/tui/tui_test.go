package tui_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/deployd/internal/presentation/tui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	tui.PrintBanner(&buf, "0.1.0")

	assert.Contains(t, buf.String(), "v0.1.0")
	assert.Contains(t, buf.String(), "|___/")
}

func TestRendererFor_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, tui.IsTerminal(f))
	assert.Nil(t, tui.RendererFor(f))
}

func TestNewRenderer(t *testing.T) {
	render := tui.NewRenderer()
	out, err := render("# Deployments\n")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployments")
}
