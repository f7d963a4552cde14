package main

import (
	"os"

	"github.com/aretw0/deployd/internal/cli"
	"github.com/aretw0/deployd/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var instanciateCmd = &cobra.Command{
	Use:   "instanciate <deployment>",
	Short: "Compute a deployment and export it",
	Long: `Computes the deployment without running it and prints or exports it.

'deployment' is either the name of a deployment model in the models directory,
a model file, or a service name resolvable to a deployment.

Output formats (--output TYPE[:file]):
  txt      markdown report on stdout (default)
  dot      Graphviz sources
  svg,png  rendered with the Graphviz 'dot' binary
  mermaid  Mermaid flowcharts

File formats write <file>-hierarchy.<type> and <file>-dataflow.<type>. The file
name defaults to the robot name, or "instanciate".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if robot, _ := cmd.Flags().GetString("robot"); robot != "" {
			cfg.SetRobot(robot)
		}
		if cmd.Flags().Changed("output") {
			cfg.Output, _ = cmd.Flags().GetString("output")
		}
		noPolicies, _ := cmd.Flags().GetBool("no-policies")

		sw := cli.NewStopwatch()
		d, err := cli.Open(cfg, logger)
		if err != nil {
			return err
		}
		defer d.Close()
		logger.Info("Loaded deployd", "models", cfg.ModelsDir, "took", sw.Lap())

		return cli.Instanciate(cmd.Context(), d, cli.InstanciateOptions{
			Target:     args[0],
			Output:     cfg.Output,
			NoPolicies: noPolicies,
			Robot:      cfg.Robot,
			Markdown:   tui.RendererFor(os.Stdout),
			Stdout:     cmd.OutOrStdout(),
			Stderr:     cmd.ErrOrStderr(),
		})
	},
}

func init() {
	rootCmd.AddCommand(instanciateCmd)

	instanciateCmd.Flags().StringP("robot", "r", "", "The robot used as context to the deployment, NAME[,TYPE]")
	instanciateCmd.Flags().StringP("output", "o", "txt", "Output format TYPE[:file] (txt, dot, svg, png or mermaid)")
	instanciateCmd.Flags().Bool("no-policies", false, "Don't compute the connection policies")
}
