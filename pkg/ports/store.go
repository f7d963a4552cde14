package ports

import (
	"context"

	"github.com/aretw0/deployd/pkg/domain"
)

// DeploymentStore persists the supervisor's bookkeeping of live processes.
// It allows other tools (and other supervisors) to see what is deployed.
type DeploymentStore interface {
	// Save records a live deployment, replacing any previous record with the same name.
	Save(ctx context.Context, record domain.DeploymentRecord) error

	// Load retrieves the record for a given process name.
	// Returns domain.ErrDeploymentNotFound if there is none.
	Load(ctx context.Context, name string) (domain.DeploymentRecord, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all recorded deployments.
	List(ctx context.Context) ([]string, error)
}
