package alarm

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
	"github.com/nerrad567/gray-bus-tools/internal/timespec"
)

// Options configures the alarm daemon.
type Options struct {
	// EventPrefix is the topic prefix for cross-alarm event and count
	// topics.
	EventPrefix string
}

// DefaultEventPrefix is used when no event prefix is configured.
const DefaultEventPrefix = "state/alrm"

// DefaultPattern is the subscription covering the conventional alarm
// topic layout.
const DefaultPattern = "alarms/+/+"

// state is an alarm's ringing state, written retained on the item topic
// so wall panels can follow it.
type state int

const (
	stateOff state = iota
	stateOn
	stateSnoozed
)

var stateNames = [...]string{"0", "1", "snoozed"}

func (s state) String() string { return stateNames[s] }

func parseState(payload string) (state, bool) {
	for i, name := range stateNames {
		if payload == name {
			return state(i), true
		}
	}
	return 0, false
}

// item is one alarm clock.
type item struct {
	topic string
	name  string // last topic segment, used as event payload

	hhmm    timespec.HHMM
	wdays   int
	valid   bool // an /alarm definition has been seen
	enabled bool
	skip    bool
	snooze  time.Duration

	state state
}

// Daemon is the alarm-clock daemon.
//
// An alarm lives under a topic like "alarms/bedroom/wakeup": "/alarm"
// holds its HH:MM, "/repeat" a weekday mask, "/enable", "/skip" and
// "/snoozetime" tune it, and the bare topic carries the ringing state
// ("0", "1" or "snoozed") retained. "/dismiss" and "/snooze" are
// momentary controls; published with an empty middle segment
// ("alarms//dismiss") they apply to every ringing alarm at once.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	sch   *sched.Scheduler
	log   daemon.Logger
	opts  Options
	items *registry.Registry[*item]
}

// New creates an alarm daemon driving its deadlines through sch.
func New(bus daemon.Bus, sch *sched.Scheduler, opts Options, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	if opts.EventPrefix == "" {
		opts.EventPrefix = DefaultEventPrefix
	}
	return &Daemon{
		bus:   bus,
		sch:   sch,
		log:   log,
		opts:  opts,
		items: registry.New[*item](),
	}
}

func newItem(key string) *item {
	name := key
	if idx := strings.LastIndexByte(key, '/'); idx >= 0 {
		name = key[idx+1:]
	}
	return &item{
		topic:   key,
		name:    name,
		wdays:   timespec.AllDays,
		enabled: true,
	}
}

// HandleMessage routes one inbound bus message. The last topic segment
// selects the operation; anything unrecognised is treated as a state
// write on the bare alarm topic.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 {
		return nil
	}
	key, tok := topic[:idx], topic[idx:]
	global := idx > 0 && topic[idx-1] == '/'
	text := string(payload)

	switch tok {
	case "/dismiss":
		if global {
			for _, it := range d.ringing() {
				d.dismiss(it)
			}
		} else if it, ok := d.items.Lookup(key); ok {
			d.dismiss(it)
		}

	case "/snooze":
		if global {
			for _, it := range d.ringing() {
				d.snooze(it)
			}
		} else if it, ok := d.items.Lookup(key); ok && it.state != stateOff {
			d.snooze(it)
		}

	case "/alarm":
		d.handleAlarmSpec(key, text)

	case "/repeat":
		it := d.ensure(key)
		it.wdays = timespec.ParseWeekdays(text)
		d.reschedule(it)

	case "/skip":
		it := d.ensure(key)
		it.skip = parseFlag(text, false)

	case "/enable":
		it := d.ensure(key)
		enabled := parseFlag(text, true)
		if enabled != it.enabled {
			d.log.Info("alarm toggled", "topic", it.topic, "enabled", enabled)
			it.enabled = enabled
			d.reschedule(it)
		}

	case "/snoozetime":
		it := d.ensure(key)
		snooze, err := timespec.ParseDuration(text)
		if err != nil {
			d.log.Warn("bad snooze time", "topic", it.topic, "spec", text, "error", err)
			return nil
		}
		it.snooze = snooze

	default:
		d.handleState(topic, text)
	}
	return nil
}

// ringing snapshots the items not currently off, so global controls can
// publish freely while iterating.
func (d *Daemon) ringing() []*item {
	var out []*item
	d.items.ForEach(func(_ string, it *item) {
		if it.state != stateOff {
			out = append(out, it)
		}
	})
	return out
}

func (d *Daemon) ensure(key string) *item {
	it, _ := d.items.Ensure(key, func() *item { return newItem(key) })
	return it
}

// handleAlarmSpec processes the "/alarm" definition topic.
// Caller holds d.mu.
func (d *Daemon) handleAlarmSpec(key, payload string) {
	if payload == "" {
		it, ok := d.items.Remove(key)
		if !ok {
			return
		}
		d.sch.Cancel(d.ring, it)
		// Flush the retained companion topics so the alarm leaves no
		// trace on the bus.
		for _, suffix := range []string{"/repeat", "/skip", "/enable", "/snoozetime"} {
			d.clearRetained(it.topic + suffix)
		}
		d.clearRetained(it.topic)
		d.log.Info("alarm removed", "topic", it.topic)
		return
	}

	hhmm, err := timespec.ParseHHMM(payload)
	if err != nil {
		d.log.Warn("bad alarm time", "topic", key, "spec", payload, "error", err)
		return
	}
	it := d.ensure(key)
	it.hhmm = hhmm
	it.valid = true
	d.reschedule(it)
}

// handleState applies an externally written ringing state on a bare
// alarm topic. Unknown topics and unknown state strings are ignored.
// Caller holds d.mu.
func (d *Daemon) handleState(topic, payload string) {
	it, ok := d.items.Lookup(topic)
	if !ok {
		return
	}
	st, ok := parseState(payload)
	if !ok || st == it.state {
		return
	}
	d.log.Info("external state", "topic", it.topic, "state", st.String())
	it.state = st
	d.publishEvent(it)
	d.publishCount()

	switch st {
	case stateOff:
		d.dismiss(it)
	case stateOn:
		d.sch.Cancel(d.ring, it)
	case stateSnoozed:
		if it.snooze <= 0 {
			d.log.Info("snoozed with zero snooze time", "topic", it.topic)
			d.dismiss(it)
			return
		}
		d.sch.Schedule(it.snooze, d.ring, it)
	}
}

// ring fires when an alarm's scheduled time arrives.
func (d *Daemon) ring(arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := arg.(*item)
	if it.skip && it.state == stateOff {
		// Skip-once: consume the flag, clear its retained topic and
		// move on to the next occurrence.
		it.skip = false
		d.clearRetained(it.topic + "/skip")
		d.log.Info("alarm skipped", "topic", it.topic)
		d.reschedule(it)
		return
	}
	it.state = stateOn
	d.publishState(it)
	d.publishEvent(it)
	d.log.Info("alarm ringing", "topic", it.topic)
}

// dismiss turns an alarm off and schedules its next occurrence.
// Caller holds d.mu.
func (d *Daemon) dismiss(it *item) { d.reschedule(it) }

// snooze pauses a ringing alarm for its snooze time.
// Caller holds d.mu.
func (d *Daemon) snooze(it *item) {
	if !it.valid || it.wdays == 0 || it.snooze <= 0 {
		d.reschedule(it)
		return
	}
	d.sch.Schedule(it.snooze, d.ring, it)
	d.log.Info("alarm snoozed", "topic", it.topic, "for", it.snooze)
	if it.state != stateSnoozed {
		it.state = stateSnoozed
		d.publishState(it)
		d.publishEvent(it)
	}
}

// reschedule cancels any pending occurrence, reports the off state if
// needed, and arms the next occurrence for a valid enabled alarm.
// Caller holds d.mu.
func (d *Daemon) reschedule(it *item) {
	d.sch.Cancel(d.ring, it)
	if it.state != stateOff {
		it.state = stateOff
		d.publishState(it)
		d.publishEvent(it)
	}
	if !it.valid || !it.enabled {
		return
	}
	if it.wdays == 0 {
		d.log.Info("no days selected", "topic", it.topic)
		return
	}
	next, ok := timespec.NextHHMM(d.sch.Now(), it.hhmm, it.wdays)
	if !ok {
		return
	}
	d.sch.ScheduleAt(next, d.ring, it)
	d.log.Info("alarm scheduled", "topic", it.topic, "at", next)
}

// publishState writes the ringing state retained on the alarm topic and
// refreshes the active count.
// Caller holds d.mu.
func (d *Daemon) publishState(it *item) {
	if err := d.bus.Publish(it.topic, it.state.String(), true); err != nil {
		d.log.Error("publish failed", "topic", it.topic, "error", err)
	}
	d.publishCount()
}

// publishEvent sends a non-retained event naming the alarm on the
// per-state event topic.
// Caller holds d.mu.
func (d *Daemon) publishEvent(it *item) {
	topic := fmt.Sprintf("%s/%s", d.opts.EventPrefix, it.state.String())
	if err := d.bus.Publish(topic, it.name, false); err != nil {
		d.log.Error("publish failed", "topic", topic, "error", err)
	}
}

// publishCount writes the number of ringing alarms retained.
// Caller holds d.mu.
func (d *Daemon) publishCount() {
	n := 0
	d.items.ForEach(func(_ string, it *item) {
		if it.state == stateOn {
			n++
		}
	})
	topic := d.opts.EventPrefix + "/on"
	if err := d.bus.Publish(topic, strconv.Itoa(n), true); err != nil {
		d.log.Error("publish failed", "topic", topic, "error", err)
	}
}

func (d *Daemon) clearRetained(topic string) {
	if err := d.bus.ClearRetained(topic); err != nil {
		d.log.Error("clear retained failed", "topic", topic, "error", err)
	}
}

// parseFlag reads a numeric boolean payload; an empty or unparseable
// payload yields def.
func parseFlag(payload string, def bool) bool {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return def
	}
	v, err := strconv.ParseUint(payload, 0, 32)
	if err != nil {
		return def
	}
	return v != 0
}

// Items returns the number of known alarms.
func (d *Daemon) Items() int { return d.items.Len() }
