package main

import (
	"context"
	"fmt"
	"os"
	"time"
)

// hardExitGrace is how long a cancelled command waits for blocking CGo
// calls it cannot preempt (encoder session Run) to return on their own
// before force-exiting, matching cmd/sift's 600ms/1s grace windows scaled
// up slightly for potentially-larger video batches.
const hardExitGrace = 2 * time.Second

// withHardExit runs work under ctx. If ctx is cancelled while work is
// still inside a blocking CGo call, a goroutine force-exits the process
// after hardExitGrace rather than hang forever, since Go cannot preempt
// CGo frames.
func withHardExit(ctx context.Context, work func() error) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\n[scout] stopping — waiting for in-flight work to finish…")
			select {
			case <-done:
				return
			case <-time.After(hardExitGrace):
				fmt.Fprintln(os.Stderr, "[scout] exiting.")
				os.Exit(130)
			}
		}
	}()

	return work()
}
