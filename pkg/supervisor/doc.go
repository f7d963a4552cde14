/*
Package supervisor owns deployed processes.

A Supervisor builds a process with the backing chosen by the caller (in-process
tasks or an external OS command), spawns it, and keeps it in its bookkeeping
until the process reports its death through OnDeploymentDead. Bookkeeping is
mirrored to a ports.DeploymentStore so that other tools (the HTTP API, another
supervisor sharing Redis) can see what is running.

Operations on the same deployment name are serialized; with a
ports.DistributedLocker they are serialized across supervisors too.
*/
package supervisor
