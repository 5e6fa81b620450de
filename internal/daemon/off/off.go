package off

import (
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
	"github.com/nerrad567/gray-bus-tools/internal/timespec"
)

// Options configures the off daemon.
type Options struct {
	// Suffix marks spec topics.
	Suffix string

	// WriteSuffix appends an extra path segment for the reset publish,
	// non-retained, instead of writing "<name>" retained.
	WriteSuffix string

	// ResetValue is the default payload published when a delay expires.
	ResetValue string
}

// DefaultSuffix is the spec-topic suffix when none is configured.
const DefaultSuffix = "/timeoff"

// DefaultResetValue is the fallback reset payload.
const DefaultResetValue = "0"

type armState int

const (
	stateIdle armState = iota
	stateArmed
	stateFired
)

type item struct {
	topic      string
	delay      time.Duration
	delayValid bool
	resetValue string
	state      armState
	onTime     time.Time
}

// Daemon is the broad-spectrum variant of the countdown timer: it rides
// a wildcard subscription instead of subscribing per item, creates items
// lazily for every topic it sees, and never deletes them. An empty spec
// payload leaves the stored delay and reset value untouched, so items
// cannot be unconfigured, only reconfigured.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	sch   *sched.Scheduler
	log   daemon.Logger
	opts  Options
	items *registry.Registry[*item]
}

// New creates an off daemon driving its deadlines through sch.
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

func (d *Daemon) getItem(key string) *item {
	it, _ := d.items.Ensure(key, func() *item {
		return &item{topic: key, resetValue: d.opts.ResetValue}
	})
	return it
}

// HandleMessage routes one inbound bus message.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key, ok := registry.MatchSuffix(topic, d.opts.Suffix); ok {
		d.handleSpec(key, string(payload))
		return nil
	}
	d.handleData(topic, string(payload))
	return nil
}

// handleSpec updates the item for key. An empty payload changes nothing
// but still re-evaluates the pending deadline.
// Caller holds d.mu.
func (d *Daemon) handleSpec(key, payload string) {
	it := d.getItem(key)

	if fields := strings.Fields(payload); len(fields) > 0 {
		delay, err := timespec.ParseDuration(fields[0])
		if err != nil {
			it.delayValid = false
			d.log.Warn("bad delay", "topic", it.topic, "spec", fields[0], "error", err)
		} else {
			it.delay = delay
			it.delayValid = true
		}
		it.resetValue = d.opts.ResetValue
		if len(fields) > 1 {
			it.resetValue = fields[1]
		}
	}
	d.log.Info("timeoff spec", "topic", it.topic,
		"delay", it.delay, "reset", it.resetValue)

	d.sch.Cancel(d.fire, it)
	if it.delayValid && it.state == stateArmed {
		d.sch.ScheduleAt(it.onTime.Add(it.delay), d.fire, it)
	}
}

// handleData applies a value seen on a bare topic.
// Caller holds d.mu.
func (d *Daemon) handleData(topic, payload string) {
	if payload == "" {
		return
	}
	it := d.getItem(topic)

	if payload == it.resetValue {
		d.sch.Cancel(d.fire, it)
		it.state = stateIdle
		return
	}
	if it.state != stateIdle {
		return
	}
	it.state = stateArmed
	it.onTime = d.sch.Now()
	if it.delayValid {
		d.sch.ScheduleAt(it.onTime.Add(it.delay), d.fire, it)
		d.log.Info("timeoff armed", "topic", it.topic, "delay", it.delay)
	}
}

// fire publishes the reset value when an item's delay expires.
func (d *Daemon) fire(arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := arg.(*item)
	pubTopic := it.topic
	retained := true
	if d.opts.WriteSuffix != "" {
		pubTopic = it.topic + "/" + strings.TrimPrefix(d.opts.WriteSuffix, "/")
		retained = false
	}
	if err := d.bus.Publish(pubTopic, it.resetValue, retained); err != nil {
		d.log.Error("publish failed", "topic", pubTopic, "error", err)
	}
	it.state = stateFired
	d.log.Info("timeoff fired", "topic", pubTopic, "value", it.resetValue)
}

// Items returns the number of tracked topics.
func (d *Daemon) Items() int { return d.items.Len() }
