// Package utils provides watch mode for continuous CLI monitoring.
//
// Watch mode clears the terminal and re-runs a command every two seconds
// until SIGINT or SIGTERM. A failed refresh is logged and the loop keeps
// going, so a daemon restart does not end the watch.
package utils

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/concave-dev/lattice/internal/logging"
)

// WatchInterval is the refresh period in watch mode
const WatchInterval = 2 * time.Second

// RunWithWatch runs fn once, or repeatedly when enableWatch is set.
func RunWithWatch(fn func() error, enableWatch bool) error {
	if !enableWatch {
		return fn()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ticker := time.NewTicker(WatchInterval)
	defer ticker.Stop()

	fmt.Print("\033[2J\033[H") // Clear screen and move cursor to top
	if err := fn(); err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			fmt.Print("\033[2J\033[H")
			if err := fn(); err != nil {
				logging.Error("Error updating display: %v", err)
				continue
			}
		case <-sigChan:
			fmt.Println("\nWatch mode interrupted")
			return nil
		}
	}
}
