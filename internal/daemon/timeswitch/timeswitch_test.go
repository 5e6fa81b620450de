package timeswitch

import (
	"testing"
	"time"

	"github.com/nerrad567/gray-bus-tools/internal/sched"
)

type pub struct {
	topic    string
	payload  string
	retained bool
}

type fakeBus struct {
	pubs    []pub
	cleared []string
}

func (b *fakeBus) Publish(topic, payload string, retained bool) error {
	b.pubs = append(b.pubs, pub{topic, payload, retained})
	return nil
}

func (b *fakeBus) ClearRetained(topic string) error {
	b.cleared = append(b.cleared, topic)
	return nil
}

func (b *fakeBus) Subscribe(string) error   { return nil }
func (b *fakeBus) Unsubscribe(string) error { return nil }

func (b *fakeBus) find(topic string) (pub, bool) {
	for i := len(b.pubs) - 1; i >= 0; i-- {
		if b.pubs[i].topic == topic {
			return b.pubs[i], true
		}
	}
	return pub{}, false
}

type fixture struct {
	d   *Daemon
	bus *fakeBus
	sch *sched.Scheduler
	now time.Time
}

func newFixture() *fixture {
	f := &fixture{
		bus: &fakeBus{},
		sch: sched.New(),
		// Wednesday March 4th, early morning.
		now: time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC),
	}
	f.sch.SetClock(func() time.Time { return f.now })
	f.d = New(f.bus, f.sch, nil)
	return f
}

func (f *fixture) at(t *testing.T, when time.Time) {
	t.Helper()
	f.now = when
	f.sch.Flush()
}

func (f *fixture) msg(t *testing.T, topic, payload string) {
	t.Helper()
	if err := f.d.HandleMessage(topic, []byte(payload)); err != nil {
		t.Fatalf("HandleMessage(%q, %q): %v", topic, payload, err)
	}
}

func TestSwitchesOnAndOff(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.msg(t, "timesw/garden/light/stop", "23:00")

	f.at(t, time.Date(2026, 3, 4, 18, 0, 30, 0, time.UTC))
	p, ok := f.bus.find("timesw/garden/light")
	if !ok || p.payload != "1" || !p.retained {
		t.Fatalf("on edge = %+v, %v", p, ok)
	}

	f.at(t, time.Date(2026, 3, 4, 23, 0, 30, 0, time.UTC))
	p, _ = f.bus.find("timesw/garden/light")
	if p.payload != "0" {
		t.Fatalf("off edge = %+v", p)
	}

	// And on again the next day.
	f.bus.pubs = nil
	f.at(t, time.Date(2026, 3, 5, 18, 0, 30, 0, time.UTC))
	p, ok = f.bus.find("timesw/garden/light")
	if !ok || p.payload != "1" {
		t.Fatalf("next day on edge = %+v, %v", p, ok)
	}
}

func TestNothingHappensUntilBothEdgesConfigured(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.at(t, time.Date(2026, 3, 4, 19, 0, 0, 0, time.UTC))
	if len(f.bus.pubs) != 0 {
		t.Fatalf("published with only a start edge: %+v", f.bus.pubs)
	}

	f.msg(t, "timesw/garden/light/stop", "23:00")
	// Now inside the interval: the next edge is the stop.
	f.at(t, time.Date(2026, 3, 4, 23, 0, 30, 0, time.UTC))
	p, ok := f.bus.find("timesw/garden/light")
	if !ok || p.payload != "0" {
		t.Fatalf("stop edge = %+v, %v", p, ok)
	}
}

func TestOvernightIntervalStopsNextDay(t *testing.T) {
	f := newFixture()

	// On Wednesday evening, off Thursday morning, Wednesdays only.
	// Configure mid-morning, outside the interval's clock-face span.
	f.now = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	f.msg(t, "timesw/porch/light/repeat", "--x----")
	f.msg(t, "timesw/porch/light/start", "22:00")
	f.msg(t, "timesw/porch/light/stop", "6:30")

	f.at(t, time.Date(2026, 3, 4, 22, 0, 30, 0, time.UTC))
	p, ok := f.bus.find("timesw/porch/light")
	if !ok || p.payload != "1" {
		t.Fatalf("on edge = %+v, %v", p, ok)
	}

	// The stop fires Thursday despite the Wednesday-only mask.
	f.at(t, time.Date(2026, 3, 5, 6, 30, 30, 0, time.UTC))
	p, _ = f.bus.find("timesw/porch/light")
	if p.payload != "0" {
		t.Fatalf("overnight stop edge = %+v", p)
	}
}

func TestStartEqualsStopIgnored(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.msg(t, "timesw/garden/light/stop", "18:00")

	f.at(t, time.Date(2026, 3, 6, 6, 0, 0, 0, time.UTC))
	if len(f.bus.pubs) != 0 {
		t.Fatalf("degenerate interval published: %+v", f.bus.pubs)
	}
}

func TestSkipSuppressesOneInterval(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.msg(t, "timesw/garden/light/stop", "23:00")
	f.msg(t, "timesw/garden/light/skip", "1")

	// Neither edge publishes; the skip is consumed at the stop edge.
	f.at(t, time.Date(2026, 3, 4, 18, 0, 30, 0, time.UTC))
	f.at(t, time.Date(2026, 3, 4, 23, 0, 30, 0, time.UTC))
	if _, ok := f.bus.find("timesw/garden/light"); ok {
		t.Fatalf("skipped interval published: %+v", f.bus.pubs)
	}
	cleared := false
	for _, c := range f.bus.cleared {
		if c == "timesw/garden/light/skip" {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("skip topic not cleared: %v", f.bus.cleared)
	}

	// The next interval runs normally.
	f.at(t, time.Date(2026, 3, 5, 18, 0, 30, 0, time.UTC))
	p, ok := f.bus.find("timesw/garden/light")
	if !ok || p.payload != "1" {
		t.Fatalf("interval after skip = %+v, %v", p, ok)
	}
}

func TestDisable(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.msg(t, "timesw/garden/light/stop", "23:00")
	f.msg(t, "timesw/garden/light/enable", "0")

	f.at(t, time.Date(2026, 3, 6, 6, 0, 0, 0, time.UTC))
	if len(f.bus.pubs) != 0 {
		t.Fatalf("disabled switch published: %+v", f.bus.pubs)
	}
}

func TestEmptyStartDeletes(t *testing.T) {
	f := newFixture()

	f.msg(t, "timesw/garden/light/start", "18:00")
	f.msg(t, "timesw/garden/light/stop", "23:00")
	f.msg(t, "timesw/garden/light/start", "")

	if f.d.Items() != 0 {
		t.Fatalf("Items = %d, want 0", f.d.Items())
	}
	want := map[string]bool{
		"timesw/garden/light/stop":   false,
		"timesw/garden/light/repeat": false,
		"timesw/garden/light/skip":   false,
		"timesw/garden/light/enable": false,
		"timesw/garden/light":        false,
	}
	for _, c := range f.bus.cleared {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for topic, seen := range want {
		if !seen {
			t.Errorf("retained %s not cleared", topic)
		}
	}

	f.at(t, time.Date(2026, 3, 6, 6, 0, 0, 0, time.UTC))
	if len(f.bus.pubs) != 0 {
		t.Fatalf("deleted switch published: %+v", f.bus.pubs)
	}
}
