package clock

import (
	"sync"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
)

// Options configures the clock daemon.
type Options struct {
	// Suffix marks format-spec topics.
	Suffix string
}

// DefaultSuffix is the spec-topic suffix when none is configured.
const DefaultSuffix = "/fmtnow"

type item struct {
	topic   string
	format  string
	last    string
	hasLast bool
}

// Daemon publishes formatted wall-clock time. A payload on
// "<name><Suffix>" gives topic "<name>" an strftime-style format; every
// second each item re-renders and the result is published retained, but
// only when the text changed, so a "%H:%M" clock publishes once a minute
// and a date-only item once a day. An empty spec payload removes the
// item and clears its retained output.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	sch   *sched.Scheduler
	log   daemon.Logger
	opts  Options
	items *registry.Registry[*item]
}

// New creates a clock daemon and arms its one-second tick on sch.
func New(bus daemon.Bus, sch *sched.Scheduler, opts Options, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	d := &Daemon{
		bus:   bus,
		sch:   sch,
		log:   log,
		opts:  opts,
		items: registry.New[*item](),
	}
	d.armTick()
	return d
}

// armTick schedules the next tick on the wall-clock second boundary.
func (d *Daemon) armTick() {
	now := d.sch.Now()
	d.sch.ScheduleAt(now.Truncate(time.Second).Add(time.Second), d.tick, nil)
}

// HandleMessage routes one inbound bus message; only spec topics are
// meaningful to this daemon.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key, ok := registry.MatchSuffix(topic, d.opts.Suffix)
	if !ok {
		return nil
	}

	if len(payload) == 0 {
		if it, removed := d.items.Remove(key); removed {
			if err := d.bus.ClearRetained(it.topic); err != nil {
				d.log.Error("clear retained failed", "topic", it.topic, "error", err)
			}
			d.log.Info("clock removed", "topic", it.topic)
		}
		return nil
	}

	format := string(payload)
	it, _ := d.items.Ensure(key, func() *item { return &item{topic: key} })
	if it.format == format {
		return nil
	}
	it.format = format
	it.hasLast = false
	d.log.Info("clock spec", "topic", it.topic, "format", format)
	return nil
}

// tick renders every item against the current time and publishes the
// ones whose text changed, then re-arms itself for the next second.
func (d *Daemon) tick(any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.sch.Now()
	d.items.ForEach(func(_ string, it *item) {
		if it.format == "" {
			return
		}
		out := Strftime(it.format, now)
		if it.hasLast && it.last == out {
			return
		}
		if err := d.bus.Publish(it.topic, out, true); err != nil {
			d.log.Error("publish failed", "topic", it.topic, "error", err)
			return
		}
		it.last = out
		it.hasLast = true
	})
	d.armTick()
}

// Shutdown clears every item's retained output so stale clock readings
// do not linger on the bus after the process stops.
func (d *Daemon) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.items.ForEach(func(_ string, it *item) {
		if !it.hasLast {
			return
		}
		if err := d.bus.ClearRetained(it.topic); err != nil {
			d.log.Error("clear retained failed", "topic", it.topic, "error", err)
		}
		it.hasLast = false
	})
}

// Items returns the number of configured clocks.
func (d *Daemon) Items() int { return d.items.Len() }
