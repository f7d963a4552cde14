package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Extensions are the model file extensions, in lookup order.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loader reads deployment models from a directory of <name>.yaml|yml|json files.
type Loader struct {
	Dir string

	// Ignore lists file names in Dir that are not models (e.g. configuration).
	Ignore []string
}

var _ ports.ModelLoader = (*Loader)(nil)

// NewLoader creates a loader over dir, skipping the ignored file names.
func NewLoader(dir string, ignore ...string) *Loader {
	return &Loader{Dir: dir, Ignore: ignore}
}

func (l *Loader) ignored(filename string) bool {
	for _, name := range l.Ignore {
		if name == filename {
			return true
		}
	}
	return false
}

// LoadDeployment parses and validates <dir>/<name>.<ext>.
func (l *Loader) LoadDeployment(ctx context.Context, name string) (domain.Deployment, error) {
	for _, ext := range Extensions {
		if l.ignored(name + ext) {
			continue
		}
		path := filepath.Join(l.Dir, name+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return domain.Deployment{}, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return parse(path, name, data)
	}
	return domain.Deployment{}, fmt.Errorf("%w: %s in %s", domain.ErrDeploymentNotFound, name, l.Dir)
}

// ListDeployments returns the sorted names of the model files in the directory.
func (l *Loader) ListDeployments(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	seen := make(map[string]string)
	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !isModelFile(entry.Name()) || l.ignored(entry.Name()) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: deployment '%s' is defined in both '%s' and '%s'", name, existing, entry.Name())
		}
		seen[name] = entry.Name()
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// LoadFile parses and validates a single model file.
// The deployment name defaults to the file name without extension.
func LoadFile(path string) (domain.Deployment, error) {
	if !isModelFile(path) {
		return domain.Deployment{}, fmt.Errorf("%w: %s is not a model file", domain.ErrInvalidDeployment, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Deployment{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	base := filepath.Base(path)
	return parse(path, strings.TrimSuffix(base, filepath.Ext(base)), data)
}

// IsModelFile reports whether filename has a model extension.
func IsModelFile(filename string) bool {
	return isModelFile(filename)
}

func isModelFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

func parse(path, name string, data []byte) (domain.Deployment, error) {
	var d domain.Deployment
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &d); err != nil {
			return domain.Deployment{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &d); err != nil {
			return domain.Deployment{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if d.Name == "" {
		d.Name = name
	}
	if err := d.Validate(); err != nil {
		return domain.Deployment{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
