package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/deployd"
	"github.com/aretw0/deployd/internal/config"
	"github.com/aretw0/deployd/pkg/adapters/file"
	loamAdapter "github.com/aretw0/deployd/pkg/adapters/loam"
	"github.com/aretw0/deployd/pkg/adapters/memory"
	"github.com/aretw0/deployd/pkg/adapters/process"
	"github.com/aretw0/deployd/pkg/adapters/redis"
	"github.com/aretw0/deployd/pkg/observability"
	"github.com/aretw0/deployd/pkg/ports"
)

// Open initializes deployd with the standard CLI conventions: the loader,
// store, commands and metrics selected by cfg. Extra options are applied last.
func Open(cfg config.Config, logger *slog.Logger, extra ...deployd.Option) (*deployd.Deployd, error) {
	opts := []deployd.Option{
		deployd.WithLogger(logger),
		deployd.WithMetrics(observability.NewMetrics(cfg.Metrics.Namespace)),
		deployd.WithTaskFactory(memory.NewFactory(memory.WithGenericTasks(cfg.GenericTasks))),
		deployd.WithDevices(cfg.Devices...),
		deployd.WithDefinitions(cfg.Definitions...),
	}

	// 1. Debug Hooks
	if cfg.Log.Debug {
		opts = append(opts, deployd.WithLifecycleHooks(observability.LoggingHooks(logger)))
	}

	// 2. Loader
	loader, err := openLoader(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, deployd.WithLoader(loader))

	// 3. External Commands
	commands, err := process.LoadConfigs(commandsPath(cfg))
	if err != nil {
		return nil, fmt.Errorf("error loading commands: %w", err)
	}
	if len(commands) > 0 {
		logger.Debug("Loaded external commands", "count", len(commands))
		opts = append(opts, deployd.WithCommands(commands))
	}

	// 4. Bookkeeping Store
	storeOpts, err := storeOptions(cfg.Store)
	if err != nil {
		return nil, err
	}
	opts = append(opts, storeOpts...)

	d, err := deployd.New(cfg.ModelsDir, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing deployd: %w", err)
	}
	return d, nil
}

func openLoader(cfg config.Config) (ports.ModelLoader, error) {
	switch cfg.Loader {
	case config.LoaderLoam:
		l, err := loamAdapter.Open(cfg.ModelsDir)
		if err != nil {
			return nil, fmt.Errorf("error opening models: %w", err)
		}
		return l, nil
	default:
		// Configuration files living next to the models are not models.
		ignore := []string{filepath.Base(config.DefaultPath)}
		if cfg.CommandsFile != "" {
			ignore = append(ignore, filepath.Base(cfg.CommandsFile))
		}
		return file.NewLoader(cfg.ModelsDir, ignore...), nil
	}
}

// commandsPath resolves a relative commands file against the working
// directory first, then the models directory.
func commandsPath(cfg config.Config) string {
	path := cfg.CommandsFile
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(cfg.ModelsDir, path)
}

func storeOptions(sc config.StoreConfig) ([]deployd.Option, error) {
	switch sc.Backend {
	case config.StoreFile:
		return []deployd.Option{deployd.WithStore(file.NewStore(sc.Path))}, nil
	case config.StoreRedis:
		var redisOpts []redis.Option
		if sc.Prefix != "" {
			redisOpts = append(redisOpts, redis.WithPrefix(sc.Prefix))
		}
		if sc.TTL > 0 {
			redisOpts = append(redisOpts, redis.WithTTL(sc.TTL))
		}
		store := redis.New(sc.Addr, sc.Password, sc.DB, redisOpts...)
		prefix := sc.Prefix
		if prefix == "" {
			prefix = redis.DefaultPrefix
		}
		return []deployd.Option{
			deployd.WithStore(store),
			deployd.WithLocker(redis.NewLocker(store.Client(), prefix)),
			deployd.WithCloser(store.Close),
		}, nil
	case config.StoreMemory, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown store backend %q", config.ErrInvalid, sc.Backend)
	}
}
