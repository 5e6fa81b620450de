package timer

import (
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
	"github.com/nerrad567/gray-bus-tools/internal/timespec"
)

// Options configures the timer daemon.
type Options struct {
	// Suffix marks timer-spec topics.
	Suffix string

	// WriteSuffix redirects the reset publish to "<name><WriteSuffix>"
	// non-retained instead of "<name>" retained.
	WriteSuffix string

	// ResetValue is the payload published when a timer fires, unless
	// the item's spec names its own.
	ResetValue string
}

// DefaultSuffix is the spec-topic suffix when none is configured.
const DefaultSuffix = "/timer"

// DefaultResetValue is the fallback reset payload.
const DefaultResetValue = "0"

// armState tracks where an item is in its cycle.
type armState int

const (
	// stateIdle: the topic holds the reset value, nothing pending.
	stateIdle armState = iota
	// stateArmed: a non-reset value arrived; the reset fires at
	// onTime+delay.
	stateArmed
	// stateFired: the reset was published; waiting for the echo (or an
	// external write) of the reset value before re-arming.
	stateFired
)

// item is one monitored topic.
type item struct {
	topic      string
	writeTopic string
	delay      time.Duration
	delayValid bool
	resetValue string
	state      armState
	onTime     time.Time
}

// Daemon publishes a reset value to a topic a fixed delay after the
// topic left its reset state. Think staircase lighting: writing "1" to
// the light topic starts the countdown, the daemon writes "0" when it
// runs out, and intermediate writes do not extend the delay.
//
// A payload on "<name><Suffix>" configures the item for "<name>":
// "DELAY[unit] [RESETVALUE]". Each configured item subscribes its own
// topic; an empty spec payload removes the item and its subscription.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	sch   *sched.Scheduler
	log   daemon.Logger
	opts  Options
	items *registry.Registry[*item]
}

// New creates a timer daemon driving its deadlines through sch.
func New(bus daemon.Bus, sch *sched.Scheduler, opts Options, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if opts.ResetValue == "" {
		opts.ResetValue = DefaultResetValue
	}
	return &Daemon{
		bus:   bus,
		sch:   sch,
		log:   log,
		opts:  opts,
		items: registry.New[*item](),
	}
}

// HandleMessage routes one inbound bus message.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key, ok := registry.MatchSuffix(topic, d.opts.Suffix); ok {
		d.handleSpec(key, string(payload))
		return nil
	}
	if it, ok := d.items.Lookup(topic); ok {
		d.handleData(it, string(payload))
	}
	return nil
}

// handleSpec configures or removes the item for key.
// Caller holds d.mu.
func (d *Daemon) handleSpec(key, payload string) {
	if payload == "" {
		it, ok := d.items.Remove(key)
		if !ok {
			return
		}
		d.sch.Cancel(d.fire, it)
		if err := d.bus.Unsubscribe(it.topic); err != nil {
			d.log.Error("unsubscribe failed", "topic", it.topic, "error", err)
		}
		d.log.Info("timer removed", "topic", it.topic)
		return
	}

	it, existed := d.items.Ensure(key, func() *item {
		writeTopic := ""
		if d.opts.WriteSuffix != "" {
			writeTopic = key + d.opts.WriteSuffix
		}
		return &item{
			topic:      key,
			writeTopic: writeTopic,
			resetValue: d.opts.ResetValue,
		}
	})
	if !existed {
		if err := d.bus.Subscribe(it.topic); err != nil {
			d.log.Error("subscribe failed", "topic", it.topic, "error", err)
		}
	}

	fields := strings.Fields(payload)
	it.delayValid = false
	if len(fields) > 0 {
		delay, err := timespec.ParseDuration(fields[0])
		if err != nil {
			d.log.Warn("bad delay", "topic", it.topic, "spec", fields[0], "error", err)
		} else {
			it.delay = delay
			it.delayValid = true
		}
	}
	it.resetValue = d.opts.ResetValue
	if len(fields) > 1 {
		it.resetValue = fields[1]
	}
	d.log.Info("timer spec", "topic", it.topic,
		"delay", it.delay, "reset", it.resetValue)

	// Re-schedule against the original on-time so a spec change while
	// armed moves the deadline rather than restarting the countdown.
	d.sch.Cancel(d.fire, it)
	if it.delayValid && it.state == stateArmed {
		d.sch.ScheduleAt(it.onTime.Add(it.delay), d.fire, it)
	}
}

// handleData applies a value observed on the item's own topic.
// Caller holds d.mu.
func (d *Daemon) handleData(it *item, payload string) {
	if payload == it.resetValue {
		d.sch.Cancel(d.fire, it)
		it.state = stateIdle
		return
	}
	if it.state != stateIdle {
		// Intermediate writes do not extend the countdown.
		return
	}
	it.state = stateArmed
	it.onTime = d.sch.Now()
	if it.delayValid {
		d.sch.ScheduleAt(it.onTime.Add(it.delay), d.fire, it)
		d.log.Info("timer armed", "topic", it.topic, "delay", it.delay)
	}
}

// fire publishes the reset value when an item's delay expires.
func (d *Daemon) fire(arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := arg.(*item)
	pubTopic := it.topic
	retained := true
	if it.writeTopic != "" {
		pubTopic = it.writeTopic
		retained = false
	}
	if err := d.bus.Publish(pubTopic, it.resetValue, retained); err != nil {
		d.log.Error("publish failed", "topic", pubTopic, "error", err)
	}
	// The reset value echoing back on the subscription moves the item
	// to idle; until then new values do not re-arm.
	it.state = stateFired
	d.log.Info("timer fired", "topic", pubTopic, "value", it.resetValue)
}

// Items returns the number of configured timers.
func (d *Daemon) Items() int { return d.items.Len() }
