package memory_test

import (
	"testing"

	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/domain"
	contract "github.com/aretw0/deployd/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryLoader_Contract(t *testing.T) {
	nav := domain.Deployment{
		Name:  "nav",
		Tasks: []domain.TaskActivity{{Name: "odometry", TaskModel: "odometry::Task"}, {Name: "planner", TaskModel: "planner::Task"}},
	}
	cam := domain.Deployment{
		Name:  "camera",
		Tasks: []domain.TaskActivity{{Name: "driver", TaskModel: "camera::Driver"}},
	}

	loader, err := memory.NewLoader(nav, cam)
	require.NoError(t, err)

	contract.ModelLoaderContractTest(t, loader, map[string]domain.Deployment{
		"nav":    nav,
		"camera": cam,
	})
}

func TestInMemoryLoader_RejectsInvalidModels(t *testing.T) {
	_, err := memory.NewLoader(domain.Deployment{Name: "broken", Tasks: []domain.TaskActivity{{Name: "a"}}})
	assert.ErrorIs(t, err, domain.ErrInvalidDeployment)
}
