package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/aretw0/loam"
)

// Loader adapts a Loam document repository to ports.ModelLoader.
// Each document is one deployment; its front matter is the model.
type Loader struct {
	Repo *loam.TypedRepository[DeploymentMetadata]
}

var (
	_ ports.ModelLoader  = (*Loader)(nil)
	_ ports.ModelWatcher = (*Loader)(nil)
)

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DeploymentMetadata]) *Loader {
	return &Loader{
		Repo: repo,
	}
}

// Open initializes a read-only Loam repository at path and wraps it.
func Open(path string) (*Loader, error) {
	repo, err := loam.Init(path, loam.WithStrict(true), loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open loam repository %s: %w", path, err)
	}
	return New(loam.NewTypedRepository[DeploymentMetadata](repo)), nil
}

// LoadDeployment retrieves and validates the model stored under name.
func (l *Loader) LoadDeployment(ctx context.Context, name string) (domain.Deployment, error) {
	doc, err := l.Repo.Get(ctx, name)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("%w: %s: %w", domain.ErrDeploymentNotFound, name, err)
	}

	d := doc.Data.Deployment(doc.ID)
	if err := d.Validate(); err != nil {
		return domain.Deployment{}, fmt.Errorf("loam document %s: %w", doc.ID, err)
	}
	return d, nil
}

// ListDeployments returns the sorted deployment names of every document.
func (l *Loader) ListDeployments(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		name := doc.Data.Deployment(doc.ID).Name
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: deployment '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Watch reports the IDs of documents that changed until ctx is done.
// The channel is closed when ctx is done or the repository stops watching.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
