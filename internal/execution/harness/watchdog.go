package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/lambda-feedback/isolate/internal/execution/channel"
	"github.com/lambda-feedback/isolate/internal/execution/codec"
)

// probe reports whether the parent is still connected.
type probe func() (bool, error)

// supervise runs a watchdog in the background. A watchdog that fails
// or panics terminates the process.
func (h *harness) supervise(ctx context.Context, name string, fn func(context.Context) error) {
	log := h.log.With(zap.String("watchdog", name))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("watchdog panicked", zap.Any("panic", r))
				h.terminate(ExitWatchdogFailure)
			}
		}()

		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("watchdog failed", zap.Error(err))
			h.terminate(ExitWatchdogFailure)
		}
	}()
}

// listenCancel reads frames from the parent until the cancellation
// sentinel arrives, the parent closes its end or ctx is done.
func listenCancel(ctx context.Context, r io.Reader, cancel context.CancelFunc, log *zap.Logger) error {
	for {
		payload, err := channel.ReadFrame(r)

		// the reader is closed once the run is over
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, io.EOF) {
			log.Debug("parent closed channel")
			return nil
		}

		if err != nil {
			return fmt.Errorf("reading cancellation: %w", err)
		}

		if channel.IsCancel(payload) {
			log.Info("cancellation requested")
			cancel()
			return nil
		}

		log.Debug("ignoring message", zap.String("type", codec.PeekType(payload)))
	}
}

// watchLiveness polls probe and terminates the process once the parent
// has been disconnected for disconnectThreshold consecutive checks.
func (h *harness) watchLiveness(ctx context.Context, probe probe) error {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	misses := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		connected, err := probe()
		if ctx.Err() != nil {
			return nil
		}

		if err != nil {
			return fmt.Errorf("probing parent: %w", err)
		}

		if connected {
			misses = 0
			continue
		}

		misses++

		if misses >= h.disconnectThreshold {
			h.log.Error("parent disconnected, exiting",
				zap.Int("checks", misses),
				zap.Duration("interval", h.pollInterval),
			)
			h.terminate(ExitOrphaned)
			return nil
		}
	}
}
