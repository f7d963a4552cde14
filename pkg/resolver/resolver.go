// Package resolver turns a service name into the object it designates by
// consulting a fixed list of registries in order.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
)

// Kind identifies a registry.
type Kind string

const (
	KindDevice      Kind = "device"
	KindDefinition  Kind = "definition"
	KindComposition Kind = "composition"
	KindTaskModel   Kind = "task_model"
)

// Order is the sequence in which registries are consulted.
var Order = []Kind{KindDevice, KindDefinition, KindComposition, KindTaskModel}

// byName reports whether a hit of this kind resolves to the name itself
// rather than to the registered object.
func (k Kind) byName() bool {
	return k == KindDevice || k == KindDefinition
}

// Registry looks names up.
//
// Lookup reports found=false when the registry does not know the name. A
// non-nil error means the registry could not answer; it stops resolution.
type Registry interface {
	Lookup(ctx context.Context, name string) (value any, found bool, err error)
}

// RegistryFunc adapts a function to Registry.
type RegistryFunc func(ctx context.Context, name string) (any, bool, error)

func (f RegistryFunc) Lookup(ctx context.Context, name string) (any, bool, error) {
	return f(ctx, name)
}

// Resolution is a successful lookup.
type Resolution struct {
	Kind  Kind   `json:"kind"`
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// Resolver consults its registries in Order.
type Resolver struct {
	registries map[Kind]Registry
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithRegistry installs the registry consulted for kind.
func WithRegistry(kind Kind, reg Registry) Option {
	return func(r *Resolver) {
		r.registries[kind] = reg
	}
}

// New creates a resolver. Kinds without a registry are skipped.
func New(opts ...Option) *Resolver {
	r := &Resolver{registries: make(map[Kind]Registry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first match in Order, or an error wrapping domain.ErrUnresolved.
// A registry failing to answer aborts the resolution with its error.
func (r *Resolver) Resolve(ctx context.Context, name string) (Resolution, error) {
	tried := make([]string, 0, len(Order))
	for _, kind := range Order {
		reg, ok := r.registries[kind]
		if !ok {
			continue
		}
		tried = append(tried, string(kind))

		value, found, err := reg.Lookup(ctx, name)
		if err != nil {
			return Resolution{}, fmt.Errorf("resolve %s: %s registry: %w", name, kind, err)
		}
		if !found {
			continue
		}
		if kind.byName() {
			value = name
		}
		return Resolution{Kind: kind, Name: name, Value: value}, nil
	}
	return Resolution{}, fmt.Errorf("%w: %s (tried %s)", domain.ErrUnresolved, name, strings.Join(tried, ", "))
}
