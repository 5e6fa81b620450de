package timeswitch

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
	"github.com/nerrad567/gray-bus-tools/internal/timespec"
)

// DefaultPattern is the subscription covering the conventional switch
// topic layout.
const DefaultPattern = "timesw/+/+"

// item validity bits; both edges must be configured before anything is
// scheduled.
const (
	validStart = 1 << iota
	validStop
	allValid = validStart | validStop
)

// item is one switched interval.
type item struct {
	topic string

	start   timespec.HHMM
	stop    timespec.HHMM
	valid   int
	wdays   int
	enabled bool
	skip    bool
}

// Daemon is the time-switch daemon: it writes "1" retained on each
// item's base topic at the configured start time and "0" at the stop
// time, on the days the repeat mask enables.
//
// Configuration mirrors the alarm daemon's companion-topic layout:
// "/start" and "/stop" hold HH:MM edges (both required), "/repeat",
// "/skip" and "/enable" tune the item, and an empty "/start" payload
// deletes it along with its retained leftovers. A stop time at or before
// the start time ends on the next calendar day, so its weekday check
// uses the mask shifted by one day.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	sch   *sched.Scheduler
	log   daemon.Logger
	items *registry.Registry[*item]
}

// New creates a time-switch daemon driving its edges through sch.
func New(bus daemon.Bus, sch *sched.Scheduler, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	return &Daemon{
		bus:   bus,
		sch:   sch,
		log:   log,
		items: registry.New[*item](),
	}
}

// HandleMessage routes one inbound bus message by its last topic
// segment.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	idx := strings.LastIndexByte(topic, '/')
	if idx < 0 {
		return nil
	}
	key, tok := topic[:idx], topic[idx:]
	text := string(payload)

	switch tok {
	case "/start":
		d.handleStart(key, text)

	case "/stop":
		it := d.ensure(key)
		hhmm, err := timespec.ParseHHMM(text)
		if err != nil {
			d.log.Warn("bad stop time", "topic", it.topic, "spec", text, "error", err)
			return nil
		}
		it.stop = hhmm
		it.valid |= validStop
		d.reschedule(it)

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
			it.enabled = enabled
			d.reschedule(it)
		}
	}
	return nil
}

func (d *Daemon) ensure(key string) *item {
	it, _ := d.items.Ensure(key, func() *item {
		return &item{topic: key, wdays: timespec.AllDays, enabled: true}
	})
	return it
}

// handleStart processes the "/start" topic, which doubles as the item's
// definition: an empty payload deletes the item.
// Caller holds d.mu.
func (d *Daemon) handleStart(key, payload string) {
	if payload == "" {
		it, ok := d.items.Remove(key)
		if !ok {
			return
		}
		d.cancel(it)
		for _, suffix := range []string{"/stop", "/repeat", "/skip", "/enable"} {
			d.clearRetained(it.topic + suffix)
		}
		d.clearRetained(it.topic)
		d.log.Info("switch removed", "topic", it.topic)
		return
	}

	hhmm, err := timespec.ParseHHMM(payload)
	if err != nil {
		d.log.Warn("bad start time", "topic", key, "spec", payload, "error", err)
		return
	}
	it := d.ensure(key)
	it.start = hhmm
	it.valid |= validStart
	d.reschedule(it)
}

// switchOn fires at a start edge.
func (d *Daemon) switchOn(arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := arg.(*item)
	if !it.skip {
		d.publish(it, "1")
	}
	d.reschedule(it)
}

// switchOff fires at a stop edge. A pending skip is consumed here, after
// it has suppressed the whole interval.
func (d *Daemon) switchOff(arg any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	it := arg.(*item)
	if it.skip {
		it.skip = false
		d.clearRetained(it.topic + "/skip")
		d.log.Info("interval skipped", "topic", it.topic)
	} else {
		d.publish(it, "0")
	}
	d.reschedule(it)
}

func (d *Daemon) cancel(it *item) {
	d.sch.Cancel(d.switchOn, it)
	d.sch.Cancel(d.switchOff, it)
}

// reschedule arms the next edge, start or stop, whichever comes first
// from now.
// Caller holds d.mu.
func (d *Daemon) reschedule(it *item) {
	d.cancel(it)
	if it.valid != allValid {
		return
	}
	if !it.enabled {
		d.log.Info("switch disabled", "topic", it.topic)
		return
	}
	if it.wdays == 0 {
		d.log.Info("no days selected", "topic", it.topic)
		return
	}
	if it.start == it.stop {
		d.log.Info("start equals stop, ignored", "topic", it.topic)
		return
	}

	now := d.sch.Now()
	mmNow := now.Hour()*60 + now.Minute()
	mmStart := it.start.Hour*60 + it.start.Min
	mmStop := it.stop.Hour*60 + it.stop.Min

	// Pick the edge that comes next on today's clock face.
	var edge timespec.HHMM
	switch {
	case mmStart <= mmNow && mmStop > mmNow:
		edge = it.stop
	case mmStart > mmNow && mmStop <= mmNow:
		edge = it.start
	case mmStart < mmStop:
		edge = it.start
	default:
		edge = it.stop
	}

	mask := it.wdays
	isStop := edge == it.stop
	if isStop && mmStart > mmStop {
		// Overnight interval: the stop happens the day after the mask's
		// start day.
		mask = timespec.ShiftMask(mask)
	}

	next, ok := timespec.NextHHMM(now, edge, mask)
	if !ok {
		return
	}
	if isStop {
		d.sch.ScheduleAt(next, d.switchOff, it)
	} else {
		d.sch.ScheduleAt(next, d.switchOn, it)
	}
	d.log.Info("edge scheduled", "topic", it.topic, "at", next, "on", !isStop)
}

func (d *Daemon) publish(it *item, value string) {
	if err := d.bus.Publish(it.topic, value, true); err != nil {
		d.log.Error("publish failed", "topic", it.topic, "error", err)
	}
}

func (d *Daemon) clearRetained(topic string) {
	if err := d.bus.ClearRetained(topic); err != nil {
		d.log.Error("clear retained failed", "topic", topic, "error", err)
	}
}

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

// Items returns the number of known switches.
func (d *Daemon) Items() int { return d.items.Len() }
