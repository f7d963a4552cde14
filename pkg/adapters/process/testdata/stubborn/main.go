package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Ignores SIGTERM so only SIGKILL stops it.
func main() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	fmt.Fprintln(os.Stderr, "Stubborn Started")
	go func() {
		for s := range sigs {
			fmt.Fprintf(os.Stderr, "Ignoring signal: %v\n", s)
		}
	}()

	for {
		time.Sleep(time.Second)
	}
}
