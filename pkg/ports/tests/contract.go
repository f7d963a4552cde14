package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
)

// ModelLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ModelLoader.
// The loader must already contain exactly the deployments in expected.
func ModelLoaderContractTest(t *testing.T, loader ports.ModelLoader, expected map[string]domain.Deployment) {
	t.Helper()
	ctx := context.Background()

	// 1. Test LoadDeployment (Success)
	t.Run("LoadDeployment_Success", func(t *testing.T) {
		for name, want := range expected {
			got, err := loader.LoadDeployment(ctx, name)
			if err != nil {
				t.Fatalf("unexpected error loading deployment %s: %v", name, err)
			}
			if got.Name != want.Name {
				t.Errorf("name mismatch for %s. got %q, want %q", name, got.Name, want.Name)
			}
			if len(got.Tasks) != len(want.Tasks) {
				t.Fatalf("task count mismatch for %s. got %d, want %d", name, len(got.Tasks), len(want.Tasks))
			}
			for i := range want.Tasks {
				if got.Tasks[i] != want.Tasks[i] {
					t.Errorf("task #%d mismatch for %s. got %+v, want %+v", i, name, got.Tasks[i], want.Tasks[i])
				}
			}
		}
	})

	// 2. Test LoadDeployment (NotFound)
	t.Run("LoadDeployment_NotFound", func(t *testing.T) {
		_, err := loader.LoadDeployment(ctx, "non-existent-deployment")
		if err == nil {
			t.Fatal("expected error for non-existent deployment, got nil")
		}
		if !errors.Is(err, domain.ErrDeploymentNotFound) {
			t.Errorf("expected ErrDeploymentNotFound, got %v", err)
		}
	})

	// 3. Test ListDeployments
	t.Run("ListDeployments", func(t *testing.T) {
		names, err := loader.ListDeployments(ctx)
		if err != nil {
			t.Fatalf("unexpected error listing deployments: %v", err)
		}

		if len(names) != len(expected) {
			t.Errorf("expected %d deployments, got %d", len(expected), len(names))
		}

		lookup := make(map[string]bool)
		for _, name := range names {
			lookup[name] = true
		}

		for name := range expected {
			if !lookup[name] {
				t.Errorf("deployment %s missing from list", name)
			}
		}
	})
}
