// Package testutils holds fixtures shared by adapter tests.
package testutils

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo initializes a loam repository in a fresh temp dir, to be
// filled with deployment models by the caller.
// It returns the repository root and the repository itself.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	root, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)

	repo, err := loam.Init(root, opts...)
	require.NoError(t, err, "loam init %s", root)

	return root, repo
}
