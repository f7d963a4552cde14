package ports

import "github.com/aretw0/deployd/pkg/domain"

// DeathListener is implemented by whatever owns a process and must learn about its death.
//
// OnDeploymentDead is called exactly once per process, after the process is no
// longer alive and after every task disposal has been attempted. It may be
// called from a goroutine other than the one that spawned the process.
type DeathListener interface {
	OnDeploymentDead(name string, status domain.Status)
}

// DeathListenerFunc adapts a plain function to DeathListener.
type DeathListenerFunc func(name string, status domain.Status)

// OnDeploymentDead calls f.
func (f DeathListenerFunc) OnDeploymentDead(name string, status domain.Status) {
	f(name, status)
}
