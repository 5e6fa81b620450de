package registry

import (
	"sort"
	"testing"
)

type item struct {
	topic string
	value int
}

func TestEnsureCreatesOnce(t *testing.T) {
	r := New[*item]()

	created := 0
	make1 := func() *item {
		created++
		return &item{topic: "light/kitchen"}
	}

	first, existed := r.Ensure("light/kitchen", make1)
	if existed {
		t.Fatal("Ensure reported an item that was never stored")
	}
	second, existed := r.Ensure("light/kitchen", make1)
	if !existed {
		t.Fatal("Ensure did not find the stored item")
	}
	if first != second {
		t.Fatal("Ensure returned a different item on the second call")
	}
	if created != 1 {
		t.Fatalf("create ran %d times, want 1", created)
	}
}

func TestLookupAndRemove(t *testing.T) {
	r := New[*item]()
	r.Store("a", &item{topic: "a"})
	r.Store("b", &item{topic: "b"})

	if got, ok := r.Lookup("a"); !ok || got.topic != "a" {
		t.Fatalf("Lookup(a) = %v, %v", got, ok)
	}
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("Lookup found a key that was never stored")
	}

	removed, ok := r.Remove("a")
	if !ok || removed.topic != "a" {
		t.Fatalf("Remove(a) = %v, %v", removed, ok)
	}
	if _, ok := r.Remove("a"); ok {
		t.Fatal("second Remove(a) still found the item")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestForEachAndKeys(t *testing.T) {
	r := New[int]()
	r.Store("a", 1)
	r.Store("b", 2)
	r.Store("c", 3)

	sum := 0
	r.ForEach(func(_ string, v int) { sum += v })
	if sum != 6 {
		t.Fatalf("sum over ForEach = %d, want 6", sum)
	}

	keys := r.Keys()
	sort.Strings(keys)
	want := []string{"a", "b", "c"}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("Keys = %v, want %v", keys, want)
		}
	}
}

func TestMatchSuffix(t *testing.T) {
	cases := []struct {
		topic, suffix string
		wantKey       string
		wantOK        bool
	}{
		{"light/kitchen/timer", "/timer", "light/kitchen", true},
		{"a/timer", "/timer", "a", true},
		// The suffix alone is not a control topic.
		{"/timer", "/timer", "", false},
		{"light/kitchen/timers", "/timer", "", false},
		{"light/kitchen", "/timer", "", false},
		{"timer", "/timer", "", false},
		{"light/kitchen/timer", "", "", false},
		// Suffixes need not start with a slash.
		{"heating.logic", ".logic", "heating", true},
	}

	for _, tc := range cases {
		key, ok := MatchSuffix(tc.topic, tc.suffix)
		if key != tc.wantKey || ok != tc.wantOK {
			t.Errorf("MatchSuffix(%q, %q) = %q, %v; want %q, %v",
				tc.topic, tc.suffix, key, ok, tc.wantKey, tc.wantOK)
		}
	}
}
