/*
Package inprocess implements ports.Process for tasks living inside the
supervisor's own process.

Task instances are built by a ports.TaskFactory during Spawn and are ready as
soon as they exist, so WaitRunning never blocks and Join is unsupported.
Host identity is fixed: "localhost", local, and the supervisor's own PID.

# Thread Safety

A Process is not internally synchronized. Spawn and Kill must be serialized by
the caller; the natural deployment is single-threaded supervision logic
driving many processes one at a time.
*/
package inprocess
