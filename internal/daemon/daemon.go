package daemon

import (
	"context"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/sched"
)

// Bus is the broker surface the daemons publish and subscribe through.
// The mqtt infrastructure client satisfies it; tests use an in-memory
// fake.
type Bus interface {
	// Publish sends payload to topic, retained or not, at the
	// configured QoS.
	Publish(topic, payload string, retained bool) error

	// ClearRetained removes a retained message by publishing an empty
	// retained payload.
	ClearRetained(topic string) error

	// Subscribe adds a subscription delivering into the daemon's
	// message handler.
	Subscribe(topic string) error

	// Unsubscribe removes a previously added subscription.
	Unsubscribe(topic string) error
}

// Logger is the logging surface the daemons need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger { return noopLogger{} }

// maxWait caps the loop's sleep so a timer scheduled from a message
// handler is never missed by more than one wait interval.
const maxWait = time.Second

// Loop drives a daemon's scheduler until ctx is cancelled: sleep until
// the next deadline (capped at one second), flush, repeat. Message
// handling happens on the bus client's goroutines; only timer callbacks
// run here.
func Loop(ctx context.Context, s *sched.Scheduler) error {
	timer := time.NewTimer(s.WaitTime(maxWait))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.Flush()
			timer.Reset(s.WaitTime(maxWait))
		}
	}
}
