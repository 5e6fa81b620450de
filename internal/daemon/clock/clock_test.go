package clock

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
		now: time.Date(2026, 3, 4, 10, 15, 30, 0, time.UTC),
	}
	f.sch.SetClock(func() time.Time { return f.now })
	f.d = New(f.bus, f.sch, Options{}, nil)
	return f
}

func (f *fixture) ticks(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		f.now = f.now.Truncate(time.Second).Add(time.Second)
		f.sch.Flush()
	}
}

func (f *fixture) msg(t *testing.T, topic, payload string) {
	t.Helper()
	if err := f.d.HandleMessage(topic, []byte(payload)); err != nil {
		t.Fatalf("HandleMessage(%q, %q): %v", topic, payload, err)
	}
}

func TestPublishesOnTick(t *testing.T) {
	f := newFixture()

	f.msg(t, "display/hall/time/fmtnow", "%H:%M:%S")
	f.ticks(t, 1)

	if len(f.bus.pubs) != 1 {
		t.Fatalf("pubs = %+v", f.bus.pubs)
	}
	p := f.bus.pubs[0]
	if p.topic != "display/hall/time" || p.payload != "10:15:31" || !p.retained {
		t.Fatalf("publish = %+v", p)
	}
}

func TestPublishesOnlyOnTextChange(t *testing.T) {
	f := newFixture()

	f.msg(t, "display/hall/time/fmtnow", "%H:%M")
	f.ticks(t, 1)
	if len(f.bus.pubs) != 1 || f.bus.pubs[0].payload != "10:15" {
		t.Fatalf("pubs = %+v", f.bus.pubs)
	}

	// 28 more seconds inside the same minute: silent.
	f.ticks(t, 28)
	if len(f.bus.pubs) != 1 {
		t.Fatalf("republished within the minute: %d publishes", len(f.bus.pubs))
	}

	// Crossing the minute publishes once.
	f.ticks(t, 1)
	if len(f.bus.pubs) != 2 || f.bus.pubs[1].payload != "10:16" {
		t.Fatalf("pubs = %+v", f.bus.pubs)
	}
}

func TestSpecChangeRepublishes(t *testing.T) {
	f := newFixture()

	f.msg(t, "display/hall/time/fmtnow", "%H:%M")
	f.ticks(t, 1)

	f.msg(t, "display/hall/time/fmtnow", "%Y-%m-%d")
	f.ticks(t, 1)
	p := f.bus.pubs[len(f.bus.pubs)-1]
	if p.payload != "2026-03-04" {
		t.Fatalf("publish after respec = %+v", p)
	}

	// Re-sending the same format changes nothing.
	n := len(f.bus.pubs)
	f.msg(t, "display/hall/time/fmtnow", "%Y-%m-%d")
	f.ticks(t, 1)
	if len(f.bus.pubs) != n {
		t.Fatalf("identical respec republished")
	}
}

func TestEmptySpecDeletesAndClears(t *testing.T) {
	f := newFixture()

	f.msg(t, "display/hall/time/fmtnow", "%H:%M")
	f.ticks(t, 1)

	f.msg(t, "display/hall/time/fmtnow", "")
	if f.d.Items() != 0 {
		t.Fatalf("Items = %d, want 0", f.d.Items())
	}
	if len(f.bus.cleared) != 1 || f.bus.cleared[0] != "display/hall/time" {
		t.Fatalf("cleared = %v", f.bus.cleared)
	}

	n := len(f.bus.pubs)
	f.ticks(t, 2)
	if len(f.bus.pubs) != n {
		t.Fatalf("deleted clock still publishing")
	}
}

func TestShutdownClearsOutputs(t *testing.T) {
	f := newFixture()

	f.msg(t, "display/hall/time/fmtnow", "%H:%M")
	f.msg(t, "display/hall/date/fmtnow", "%F")
	f.ticks(t, 1)

	f.d.Shutdown()
	want := map[string]bool{"display/hall/time": false, "display/hall/date": false}
	for _, c := range f.bus.cleared {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for topic, seen := range want {
		if !seen {
			t.Errorf("%s not cleared on shutdown", topic)
		}
	}
}

func TestStrftime(t *testing.T) {
	at := time.Date(2026, 3, 4, 14, 5, 9, 0, time.UTC) // a Wednesday

	cases := []struct {
		layout, want string
	}{
		{"%Y-%m-%d", "2026-03-04"},
		{"%H:%M:%S", "14:05:09"},
		{"%T", "14:05:09"},
		{"%R", "14:05"},
		{"%F", "2026-03-04"},
		{"%D", "03/04/26"},
		{"%a %b %e", "Wed Mar  4"},
		{"%A %B", "Wednesday March"},
		{"%I%p", "02PM"},
		{"%u/%w", "3/3"},
		{"%j", "063"},
		{"%y%C", "2620"},
		{"100%%", "100%"},
		{"no specifiers", "no specifiers"},
		{"%Q", "%Q"},
	}
	for _, tc := range cases {
		if got := Strftime(tc.layout, at); got != tc.want {
			t.Errorf("Strftime(%q) = %q, want %q", tc.layout, got, tc.want)
		}
	}
}
