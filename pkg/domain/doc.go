/*
Package domain contains the core domain models of the deployd supervisor.

It defines the fundamental entities shared by every process backing, such as
Deployments, their Task Activities and the Status a process ends with. This
package is kept pure and free of external dependencies like I/O or persistence,
following Hexagonal Architecture principles.

# Key Entities

  - Deployment: A declarative description of the tasks a process should contain.
  - TaskActivity: One named task declared in a Deployment.
  - Status: An immutable record describing how a managed process ended.
  - ProcessState: The lifecycle state of a process (unspawned, running, dead).
  - Backing: The execution model behind a process (in-process or external).
*/
package domain
