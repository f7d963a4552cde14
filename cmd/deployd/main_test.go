package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/deployd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "deployd version "+deployd.Version+"\n", out)
}

func TestInstanciate(t *testing.T) {
	dir := t.TempDir()
	model := `name: cam
tasks:
  - name: driver
    task_model: camera::Driver
mappings:
  driver: left_driver
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cam.yaml"), []byte(model), 0644))

	t.Run("Text Report", func(t *testing.T) {
		out, _, err := execute(t, "instanciate", "cam", "--dir", dir, "--output", "txt")
		require.NoError(t, err)
		assert.Contains(t, out, "## cam")
		assert.Contains(t, out, "left_driver")
	})

	t.Run("Unknown Deployment", func(t *testing.T) {
		_, _, err := execute(t, "instanciate", "missing", "--dir", dir, "--output", "txt")
		assert.Error(t, err)
	})

	t.Run("Missing Argument", func(t *testing.T) {
		_, _, err := execute(t, "instanciate")
		assert.Error(t, err)
	})
}
