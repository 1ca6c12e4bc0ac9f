package runtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext is canceled on the first SIGINT or SIGTERM so the service can
// drain. A second signal while draining exits the process with status 1.
func SignalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case <-sigs:
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			os.Exit(1)
		case <-done:
		}
	}()

	stop := func() {
		signal.Stop(sigs)
		cancel()
		select {
		case <-done:
		default:
			close(done)
		}
	}
	return ctx, stop
}
