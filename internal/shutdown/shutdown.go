// Package shutdown turns termination signals into a cooperative stop request.
//
// The first SIGINT, SIGTERM or SIGHUP writes the shutdown marker and cancels
// the watch context. The upload loop observes both and lets the file it is
// currently transferring finish its transition before returning. A second
// signal forces the process to exit immediately.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"uploadr/internal/logging"
)

// ForcedExitCode is used when a second signal arrives before cleanup finishes.
const ForcedExitCode = 130

// Markers is the subset of the marker store the coordinator needs.
type Markers interface {
	RequestShutdown(reason string) error
	UploadInFlight() (string, bool)
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithSignals replaces OS signal delivery with the provided channel.
func WithSignals(ch <-chan os.Signal) Option {
	return func(c *Coordinator) { c.signals = ch }
}

// WithExit replaces os.Exit for the forced-exit path.
func WithExit(exit func(int)) Option {
	return func(c *Coordinator) {
		if exit != nil {
			c.exit = exit
		}
	}
}

// Coordinator converts signals into marker writes and context cancellation.
type Coordinator struct {
	markers Markers
	logger  *slog.Logger
	signals <-chan os.Signal
	exit    func(int)

	mu     sync.Mutex
	reason string
}

// New builds a coordinator. markers may be nil, in which case only the
// context is cancelled.
func New(markers Markers, logger *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		markers: markers,
		logger:  logging.NewComponentLogger(logger, "shutdown"),
		exit:    os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Watch returns a context cancelled on the first signal. stop releases the
// signal subscription and cancels the context; it is safe to call repeatedly.
func (c *Coordinator) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	source := c.signals
	var osSignals chan os.Signal
	if source == nil {
		osSignals = make(chan os.Signal, 2)
		signal.Notify(osSignals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		source = osSignals
	}

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			if osSignals != nil {
				signal.Stop(osSignals)
			}
			cancel()
		})
	}

	go func() {
		received := false
		for {
			select {
			case <-done:
				return
			case sig, ok := <-source:
				if !ok {
					return
				}
				if received {
					c.force(sig)
					return
				}
				received = true
				c.request(sig)
				cancel()
			}
		}
	}()

	return ctx, stop
}

// Reason returns the signal name that triggered shutdown, or "" if none has.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Coordinator) request(sig os.Signal) {
	name := SignalName(sig)
	c.mu.Lock()
	c.reason = name
	c.mu.Unlock()

	if c.markers != nil {
		if err := c.markers.RequestShutdown(name); err != nil {
			logging.WarnWithContext(c.logger, "shutdown marker not written", "shutdown_marker_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the state directory"),
				logging.String(logging.FieldImpact, "stop relies on context cancellation only"),
			)
		}
	}

	inflight := ""
	if c.markers != nil {
		inflight, _ = c.markers.UploadInFlight()
	}
	if inflight == "" {
		c.logger.Info("shutdown requested; stopping now",
			logging.String(logging.FieldEventType, "shutdown_requested"),
			logging.String("signal", name),
		)
		return
	}
	c.logger.Info("shutdown requested; deferring until current file completes",
		logging.String(logging.FieldEventType, "shutdown_deferred"),
		logging.String("signal", name),
		logging.String(logging.FieldPath, inflight),
	)
}

func (c *Coordinator) force(sig os.Signal) {
	c.logger.Error("second signal received; exiting immediately",
		logging.String(logging.FieldEventType, "shutdown_forced"),
		logging.String("signal", SignalName(sig)),
		logging.String(logging.FieldImpact, "in-flight upload may leave an orphan remote photo"),
	)
	c.exit(ForcedExitCode)
}

// SignalName returns the conventional upper-case name, e.g. "SIGTERM".
func SignalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
