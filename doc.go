/*
Package deployd supervises deployments: named groups of task instances that
run together as one process, either inside the host program or as an
external command.

# Concept

A deployment model lists tasks (logical name + task model) and the dataflow
connections between them. Deploying a model under a name builds a Process,
spawns it, and records it in the supervisor. Task instances are registered
under deployed names, by default "<process>_<task>" when the process name
differs from the model name.

A process moves through UNSPAWNED -> RUNNING -> DEAD. Death is reported
exactly once to the owner (the supervisor), with a Status that is either an
exit code or a signal, after every task has been disposed of.

# Usage

	d, err := deployd.New("./models")
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()

	proc, err := d.Deploy(ctx, "left_cam", "camera", domain.SpawnOptions{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(proc.State()) // running

	err = d.Kill(ctx, "left_cam", domain.DefaultStatus())

# Backings

In-process deployments build their tasks through a ports.TaskFactory and
never leave the host program. External deployments run the command
registered for their model (see process.LoadConfigs) and address tasks
through handles. Both implement ports.Process.
*/
package deployd
