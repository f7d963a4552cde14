// Package naming maps logical task names (as declared in a deployment model) to
// the deployed names used to address running tasks.
//
// Every Mapper is pure: the same logical name always yields the same deployed
// name, so lookups re-deriving a name after spawn match what spawn inserted.
package naming

import (
	"fmt"
	"sort"

	"github.com/aretw0/deployd/pkg/domain"
)

// DefaultSeparator joins a process name and a task name.
const DefaultSeparator = "_"

// Mapper turns a logical task name into a deployed name.
type Mapper interface {
	Map(logical string) string
}

// Func adapts a plain function to Mapper.
type Func func(logical string) string

// Map calls f.
func (f Func) Map(logical string) string { return f(logical) }

// Identity leaves names unchanged.
type Identity struct{}

// Map returns logical.
func (Identity) Map(logical string) string { return logical }

// Prefix prepends a fixed prefix.
type Prefix struct {
	Prefix    string
	Separator string
}

// Map returns Prefix + Separator + logical. An empty prefix is the identity.
func (p Prefix) Map(logical string) string {
	if p.Prefix == "" {
		return logical
	}
	return p.Prefix + p.Separator + logical
}

// Suffix appends a fixed suffix.
type Suffix struct {
	Suffix    string
	Separator string
}

// Map returns logical + Separator + Suffix. An empty suffix is the identity.
func (s Suffix) Map(logical string) string {
	if s.Suffix == "" {
		return logical
	}
	return logical + s.Separator + s.Suffix
}

// Table renames the names it knows and delegates the others to Fallback.
// A nil Fallback means identity.
type Table struct {
	Names    map[string]string
	Fallback Mapper
}

// Map looks logical up in the table first.
func (t Table) Map(logical string) string {
	if mapped, ok := t.Names[logical]; ok {
		return mapped
	}
	if t.Fallback == nil {
		return logical
	}
	return t.Fallback.Map(logical)
}

// ForProcess returns the conventional "<process>_<task>" mapper.
func ForProcess(processName string) Mapper {
	return Prefix{Prefix: processName, Separator: DefaultSeparator}
}

// ForDeployment combines the explicit mappings of a model with a fallback.
// Explicit mappings win; other names go through fallback.
func ForDeployment(model domain.Deployment, fallback Mapper) Mapper {
	if len(model.Mappings) == 0 {
		if fallback == nil {
			return Identity{}
		}
		return fallback
	}
	names := make(map[string]string, len(model.Mappings))
	for k, v := range model.Mappings {
		names[k] = v
	}
	return Table{Names: names, Fallback: fallback}
}

// Apply maps every logical name and returns the logical -> deployed table.
// It fails with domain.ErrNameCollision if two names map to the same deployed name.
func Apply(m Mapper, logical []string) (map[string]string, error) {
	out := make(map[string]string, len(logical))
	owners := make(map[string]string, len(logical))
	for _, name := range logical {
		deployed := m.Map(name)
		if deployed == "" {
			return nil, fmt.Errorf("%w: %s maps to an empty name", domain.ErrNameCollision, name)
		}
		if other, taken := owners[deployed]; taken && other != name {
			pair := []string{other, name}
			sort.Strings(pair)
			return nil, fmt.Errorf("%w: %s and %s both map to %s", domain.ErrNameCollision, pair[0], pair[1], deployed)
		}
		owners[deployed] = name
		out[name] = deployed
	}
	return out, nil
}

// Validate reports whether m maps logical to distinct, non-empty names.
func Validate(m Mapper, logical []string) error {
	_, err := Apply(m, logical)
	return err
}
