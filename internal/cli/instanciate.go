package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/deployd"
	"github.com/aretw0/deployd/internal/config"
	"github.com/aretw0/deployd/internal/presentation/graph"
	"github.com/aretw0/deployd/pkg/adapters/file"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/naming"
	"github.com/aretw0/deployd/pkg/resolver"
)

// InstanciateOptions contains the configuration of the instanciate command.
type InstanciateOptions struct {
	// Target is a deployment name, a model file or any resolvable service name.
	Target string
	// Output is the TYPE[:file] export spec.
	Output     string
	NoPolicies bool
	Robot      config.RobotConfig

	// Dir receives the exported files.
	Dir string
	// Markdown renders the txt report, see tui.RendererFor.
	Markdown func(string) (string, error)

	Stdout io.Writer
	Stderr io.Writer
}

// Instanciate computes the deployment designated by opts.Target without
// running it, and exports it in the requested format.
func Instanciate(ctx context.Context, d *deployd.Deployd, opts InstanciateOptions) error {
	logger := d.Logger()
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	sw := NewStopwatch()

	// 1. Output Spec
	out, err := graph.ParseOutput(opts.Output)
	if err != nil {
		return err
	}
	out = out.WithDefaultBase(opts.Robot.Name, opts.Robot.Type)

	// 2. Resolve
	model, err := resolveDeployment(ctx, d, opts.Target)
	if err != nil {
		return err
	}
	logger.Info("Deployment resolved", "target", opts.Target, "deployment", model.Name, "took", sw.Lap())

	// 3. Names must not collide once deployed
	if err := naming.Validate(naming.ForDeployment(model, naming.Identity{}), model.TaskNames()); err != nil {
		return fmt.Errorf("deployment %s: %w", model.Name, err)
	}

	// 4. Export
	exporter := graph.Exporter{Dir: opts.Dir, Markdown: opts.Markdown}
	files, err := exporter.Export(ctx, out, []domain.Deployment{model}, !opts.NoPolicies, opts.Stdout)
	if err != nil {
		return fmt.Errorf("export %s: %w", out.Format, err)
	}
	logger.Info("Deployment exported", "format", out.Format, "took", sw.Lap())

	if len(files) == 2 {
		printSystemMessage(opts.Stderr, "output task hierarchy in %s", files[0])
		printSystemMessage(opts.Stderr, "output dataflow in %s", files[1])
	}
	return nil
}

// resolveDeployment turns target into a deployment model. A model file is
// read directly; anything else goes through the service resolver.
func resolveDeployment(ctx context.Context, d *deployd.Deployd, target string) (domain.Deployment, error) {
	if file.IsModelFile(target) {
		if _, err := os.Stat(target); err == nil {
			return file.LoadFile(target)
		}
	}

	res, err := d.Resolve(ctx, target)
	if err != nil {
		return domain.Deployment{}, err
	}

	switch res.Kind {
	case resolver.KindComposition:
		model, ok := res.Value.(domain.Deployment)
		if !ok {
			return domain.Deployment{}, fmt.Errorf("%s resolved to %T, not a deployment", target, res.Value)
		}
		return model, nil
	case resolver.KindTaskModel:
		// A bare task model deploys as a single task named after it.
		return domain.Deployment{
			Name:  target,
			Tasks: []domain.TaskActivity{{Name: target, TaskModel: target}},
		}, nil
	default:
		return domain.Deployment{}, fmt.Errorf("%s is a %s and cannot be instanciated", target, res.Kind)
	}
}
