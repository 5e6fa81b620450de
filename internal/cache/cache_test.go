package cache

import "testing"

func TestGetSetRoundTrip(t *testing.T) {
	c := New()

	if _, ok := c.Get("light/kitchen"); ok {
		t.Fatal("Get found a topic that was never set")
	}

	c.Set("light/kitchen", "21.5")
	if v, ok := c.Get("light/kitchen"); !ok || v != 21.5 {
		t.Fatalf("Get = %v, %v; want 21.5, true", v, ok)
	}

	c.Set("light/kitchen", "0")
	if v, ok := c.Get("light/kitchen"); !ok || v != 0 {
		t.Fatalf("Get after overwrite = %v, %v; want 0, true", v, ok)
	}
}

func TestSetKeepsSortedOrder(t *testing.T) {
	c := New()

	// Insert out of order; every topic must remain findable.
	topics := []string{"m/x", "a/y", "z/q", "a/b", "m/a"}
	for i, topic := range topics {
		c.Set(topic, "1")
		for _, earlier := range topics[:i+1] {
			if _, ok := c.Get(earlier); !ok {
				t.Fatalf("after inserting %q, lost %q", topic, earlier)
			}
		}
	}
	if c.Len() != len(topics) {
		t.Fatalf("Len = %d, want %d", c.Len(), len(topics))
	}
}

func TestNonNumericPayloadReadsAsZero(t *testing.T) {
	c := New()
	c.Set("door/front", "open")

	if v := c.Float("door/front"); v != 0 {
		t.Fatalf("Float = %v, want 0", v)
	}
	if raw, ok := c.Raw("door/front"); !ok || raw != "open" {
		t.Fatalf("Raw = %q, %v; want open, true", raw, ok)
	}
}

func TestRefCreatesValuelessEntry(t *testing.T) {
	c := New()
	c.Ref("sensor/temp", 1)

	if _, ok := c.Get("sensor/temp"); ok {
		t.Fatal("referenced-only topic reported a value")
	}
	if v := c.Float("sensor/temp"); v != 0 {
		t.Fatalf("Float = %v, want 0", v)
	}
	if c.Refs("sensor/temp") != 1 {
		t.Fatalf("Refs = %d, want 1", c.Refs("sensor/temp"))
	}
}

func TestRefCountNeverNegative(t *testing.T) {
	c := New()
	c.Ref("a", 1)
	c.Ref("a", -1)
	c.Ref("a", -1)
	if c.Refs("a") != 0 {
		t.Fatalf("Refs = %d, want 0", c.Refs("a"))
	}
}

func TestSetReportsReferenced(t *testing.T) {
	c := New()

	if c.Set("a", "1") {
		t.Fatal("unreferenced topic reported as referenced")
	}
	c.Ref("a", 1)
	if !c.Set("a", "2") {
		t.Fatal("referenced topic reported as unreferenced")
	}
	c.Ref("a", -1)
	if c.Set("a", "3") {
		t.Fatal("deref'd topic still reported as referenced")
	}
}

func TestChangedFlag(t *testing.T) {
	c := New()
	c.Set("a", "1")

	if c.Changed("a") {
		t.Fatal("fresh entry already marked changed")
	}
	c.MarkChanged("a")
	if !c.Changed("a") {
		t.Fatal("MarkChanged did not stick")
	}
	c.ClearChanged("a")
	if c.Changed("a") {
		t.Fatal("ClearChanged did not clear")
	}

	// Unknown topics are ignored, not created.
	c.MarkChanged("ghost")
	if c.Changed("ghost") || c.Len() != 1 {
		t.Fatal("MarkChanged created an entry for an unknown topic")
	}
}
