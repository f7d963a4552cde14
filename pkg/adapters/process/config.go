package process

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultKillTimeout  = 5 * time.Second
)

// Config describes the OS command that hosts a deployment's tasks.
type Config struct {
	Name        string            `yaml:"name" json:"name" mapstructure:"name"`
	Command     string            `yaml:"command" json:"command" mapstructure:"command"`
	Args        []string          `yaml:"args" json:"args" mapstructure:"args"`
	Env         map[string]string `yaml:"env" json:"env" mapstructure:"env"`
	Dir         string            `yaml:"dir" json:"dir" mapstructure:"dir"`
	Description string            `yaml:"description" json:"description" mapstructure:"description"`

	// ReadyFile, when set, is created by the command once its tasks are up.
	// The path is also exported to the command as DEPLOYD_READY_FILE.
	ReadyFile string `yaml:"ready_file" json:"ready_file" mapstructure:"ready_file"`
	// ReadyDelay is used when there is no ReadyFile: the process counts as
	// ready this long after it started.
	ReadyDelay time.Duration `yaml:"ready_delay" json:"ready_delay" mapstructure:"ready_delay"`

	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" mapstructure:"poll_interval"`
	// KillTimeout is the grace period between SIGTERM and SIGKILL.
	KillTimeout time.Duration `yaml:"kill_timeout" json:"kill_timeout" mapstructure:"kill_timeout"`
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = DefaultKillTimeout
	}
	return c
}

// configFile is the layout of deployments.yaml.
type configFile struct {
	Deployments []Config `mapstructure:"deployments"`
}

// LoadConfigs reads a configuration file (YAML or JSON) and returns the
// command configs keyed by deployment name.
// A missing file means "no external deployments configured".
func LoadConfigs(path string) (map[string]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Config{}, nil
		}
		return nil, fmt.Errorf("failed to read process config: %w", err)
	}

	// Durations are written as "2s", so decode generically first and let
	// mapstructure apply the conversions.
	var raw map[string]any
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	var cfg configFile
	if err := decode(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}

	configs := make(map[string]Config)
	for _, c := range cfg.Deployments {
		if c.Name == "" {
			continue
		}
		if c.Command == "" {
			return nil, fmt.Errorf("deployment %s in %s has no command", c.Name, filepath.Base(path))
		}
		configs[c.Name] = c
	}
	return configs, nil
}

func decode(input any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
