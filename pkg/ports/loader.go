package ports

import (
	"context"

	"github.com/aretw0/deployd/pkg/domain"
)

// ModelLoader defines how the supervisor retrieves deployment models.
// This allows the storage layer (Loam, files, memory) to be decoupled.
type ModelLoader interface {
	// LoadDeployment returns the deployment with the given name.
	// Returns domain.ErrDeploymentNotFound if it does not exist.
	LoadDeployment(ctx context.Context, name string) (domain.Deployment, error)

	// ListDeployments returns the names of all known deployments.
	ListDeployments(ctx context.Context) ([]string, error)
}

// ModelWatcher is implemented by loaders that can report model changes.
type ModelWatcher interface {
	// Watch sends the name of every changed model until ctx is done.
	Watch(ctx context.Context) (<-chan string, error)
}
