package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Announces readiness, then exits cleanly on SIGTERM.
func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	fmt.Fprintf(os.Stderr, "Good Citizen hosting %s\n", os.Getenv("DEPLOYD_TASKS"))
	if path := os.Getenv("DEPLOYD_READY_FILE"); path != "" {
		if err := os.WriteFile(path, []byte("ready\n"), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, "cannot write ready file:", err)
			os.Exit(2)
		}
	}

	select {
	case sig := <-sigs:
		fmt.Fprintf(os.Stderr, "Received signal: %s, cleaning up\n", sig)
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	case <-time.After(30 * time.Second):
		os.Exit(0)
	}
}
