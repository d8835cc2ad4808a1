// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package terminal

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
)

// DefaultResizeThrottle is the coalescing window for resize signals.
const DefaultResizeThrottle = 50 * time.Millisecond

// routedSignals are the signals the router registers for.
var routedSignals = []os.Signal{
	syscall.SIGWINCH,
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGQUIT,
	syscall.SIGHUP,
}

// SignalRouter turns OS signals into resize and terminate callbacks.
type SignalRouter struct {
	logger   *slog.Logger
	clock    clock.Clock
	throttle time.Duration

	signals chan os.Signal
	notify  func(chan<- os.Signal, ...os.Signal)
	stop    func(chan<- os.Signal)
}

// NewSignalRouter returns a router that coalesces resizes within
// throttle (DefaultResizeThrottle if zero).
func NewSignalRouter(clock clock.Clock, throttle time.Duration, logger *slog.Logger) *SignalRouter {
	if throttle <= 0 {
		throttle = DefaultResizeThrottle
	}
	return &SignalRouter{
		logger:   logger,
		clock:    clock,
		throttle: throttle,
		signals:  make(chan os.Signal, 16),
		notify:   signal.Notify,
		stop:     signal.Stop,
	}
}

// Run registers for signals and dispatches them until a terminate
// signal arrives or ctx is done. onResize runs on this goroutine, at
// most once per throttle window. onTerminate runs once, after which Run
// returns; if it is caught in the same drain as pending resizes, the
// resize notification goes first.
func (r *SignalRouter) Run(ctx context.Context, onResize func(), onTerminate func()) {
	r.notify(r.signals, routedSignals...)
	defer r.stop(r.signals)

	var windowStart time.Time
	for {
		var received os.Signal
		select {
		case <-ctx.Done():
			return
		case received = <-r.signals:
		}

		if isTerminate(received) {
			r.logger.Debug("terminate signal received", "signal", received)
			onTerminate()
			return
		}
		if received != syscall.SIGWINCH {
			continue
		}

		// A resize outside the window fires at once. Inside it, the
		// router sleeps out the window and folds every resize that
		// queued meanwhile into one callback.
		var terminate os.Signal
		if !windowStart.IsZero() {
			if elapsed := r.clock.Now().Sub(windowStart); elapsed < r.throttle {
				r.clock.Sleep(r.throttle - elapsed)
				terminate = r.drainResizes()
			}
		}
		onResize()
		windowStart = r.clock.Now()

		if terminate != nil {
			r.logger.Debug("terminate signal received", "signal", terminate)
			onTerminate()
			return
		}
	}
}

// drainResizes discards resize signals that queued while the router
// was sleeping out the window. A terminate signal found while draining
// is returned so it is not lost.
func (r *SignalRouter) drainResizes() os.Signal {
	for {
		select {
		case received := <-r.signals:
			if isTerminate(received) {
				return received
			}
		default:
			return nil
		}
	}
}

func isTerminate(received os.Signal) bool {
	switch received {
	case syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGHUP:
		return true
	default:
		return false
	}
}
