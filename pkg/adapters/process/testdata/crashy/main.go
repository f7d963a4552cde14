package main

import (
	"fmt"
	"os"
	"time"
)

// Dies on its own shortly after start.
func main() {
	time.Sleep(100 * time.Millisecond)
	fmt.Fprintln(os.Stderr, "Something went terribly wrong")
	os.Exit(123)
}
