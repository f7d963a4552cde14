// Package config holds the settings the deployd commands are started with.
// A Config is loaded once, adjusted by command-line flags, then passed
// explicitly to whatever needs it. Nothing reads it globally.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/deployd/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPath is looked up when no --config flag is given.
const DefaultPath = "deployd.yaml"

// Loader backends.
const (
	LoaderFile = "file"
	LoaderLoam = "loam"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// ErrInvalid is wrapped by Validate errors.
var ErrInvalid = errors.New("invalid configuration")

// Config is the deployd configuration file.
type Config struct {
	Log logging.Config `yaml:"log"`

	// ModelsDir holds the deployment models.
	ModelsDir string `yaml:"models_dir"`
	// Loader is "file" (plain YAML/JSON) or "loam" (documents with front matter).
	Loader string `yaml:"loader"`
	// CommandsFile lists the external commands, see process.LoadConfigs.
	CommandsFile string `yaml:"commands_file"`
	// GenericTasks lets unknown task models run as generic in-process tasks.
	GenericTasks bool `yaml:"generic_tasks"`

	Store   StoreConfig   `yaml:"store"`
	HTTP    HTTPConfig    `yaml:"http"`
	Metrics MetricsConfig `yaml:"metrics"`
	Robot   RobotConfig   `yaml:"robot"`

	// Devices and Definitions feed the service resolver.
	Devices     []string `yaml:"devices"`
	Definitions []string `yaml:"definitions"`

	// Output is the default export spec of instanciate, e.g. "svg:nav".
	Output string `yaml:"output"`
}

// StoreConfig selects where deployment records are kept.
type StoreConfig struct {
	Backend  string        `yaml:"backend"`
	Path     string        `yaml:"path"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace"`
}

// RobotConfig names the robot the deployments run on.
type RobotConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log:          logging.Config{Level: "info", Format: "text"},
		ModelsDir:    ".",
		Loader:       LoaderFile,
		CommandsFile: "deployments.yaml",
		GenericTasks: true,
		Store:        StoreConfig{Backend: StoreMemory},
		HTTP:         HTTPConfig{Addr: ":8080"},
		Metrics:      MetricsConfig{Namespace: "deployd"},
		Output:       "txt",
	}
}

// Load reads path over the defaults. An empty path tries DefaultPath and
// falls back to the defaults if it does not exist; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the enumerated settings.
func (c Config) Validate() error {
	switch c.Loader {
	case LoaderFile, LoaderLoam:
	default:
		return fmt.Errorf("%w: unknown loader %q (want file or loam)", ErrInvalid, c.Loader)
	}

	switch c.Store.Backend {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.Addr == "" {
			return fmt.Errorf("%w: store.addr is required for the redis backend", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q (want memory, file or redis)", ErrInvalid, c.Store.Backend)
	}
	return nil
}

// SetRobot parses the --robot flag, NAME or NAME,TYPE.
func (c *Config) SetRobot(spec string) {
	name, typ, _ := strings.Cut(spec, ",")
	c.Robot.Name = strings.TrimSpace(name)
	c.Robot.Type = strings.TrimSpace(typ)
}
