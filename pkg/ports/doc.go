/*
Package ports defines the driven ports (interfaces) of the deployd supervisor.

These interfaces decouple the lifecycle core from concrete backings and
infrastructure, allowing the supervisor to drive in-process and external
processes alike, and to keep its bookkeeping in various stores.

# Key Interfaces

  - Process: The lifecycle contract every backing implements (Spawn, WaitRunning, IsAlive, Kill, Task, Join).
  - Task / TaskFactory: Opaque task instances and the factory building them.
  - DeathListener: The owning-registry callback fired exactly once when a process dies.
  - ModelLoader: Responsible for loading Deployment models.
  - DeploymentStore: Persists the supervisor's bookkeeping.
  - DistributedLocker: Provides distributed locking for concurrent supervisors.
*/
package ports
