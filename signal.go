package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted is the conventional status for a process killed by SIGINT.
const exitInterrupted = 130

// forceExit is swapped out in tests.
var forceExit = os.Exit

// shutdownContext returns a context that cancels on the first SIGINT/SIGTERM
// and force-exits on the second. Cancellation unblocks the code prompt, API
// retries, and task polling; the second signal covers anything that ignores it.
func shutdownContext(parent context.Context, logger *slog.Logger) context.Context {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigCh)

		select {
		case sig := <-sigCh:
			logger.Info("interrupted, cancelling",
				slog.String("signal", sig.String()),
			)
			cancel()
		case <-ctx.Done():
			return
		}

		select {
		case sig := <-sigCh:
			logger.Warn("second interrupt, exiting",
				slog.String("signal", sig.String()),
			)
			forceExit(exitInterrupted)
		case <-parent.Done():
			return
		}
	}()

	return ctx
}
