package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/deployd/pkg/domain"
)

// Loader implements ports.ModelLoader using an in-memory map.
// Safe for concurrent use.
type Loader struct {
	mu          sync.RWMutex
	deployments map[string]domain.Deployment
}

// NewLoader creates a new Loader holding the given deployments, keyed by name.
// Models are validated up front.
func NewLoader(deployments ...domain.Deployment) (*Loader, error) {
	l := &Loader{deployments: make(map[string]domain.Deployment)}
	for _, d := range deployments {
		if err := l.Add(d); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add registers (or replaces) a deployment.
func (l *Loader) Add(d domain.Deployment) error {
	if err := d.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.deployments[d.Name] = d
	return nil
}

// LoadDeployment retrieves a deployment by name.
func (l *Loader) LoadDeployment(ctx context.Context, name string) (domain.Deployment, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.deployments[name]
	if !ok {
		return domain.Deployment{}, fmt.Errorf("%w: %s", domain.ErrDeploymentNotFound, name)
	}
	return d, nil
}

// ListDeployments returns all deployment names.
func (l *Loader) ListDeployments(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.deployments))
	for k := range l.deployments {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
