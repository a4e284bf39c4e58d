package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time           { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Hour)
	c.Set("a", "1")
	c.Set("b", "2")
	if _, ok := c.Get("a"); !ok { // a is now most recent
		t.Fatal("a should be present")
	}
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("%s should be present", k)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Hits != 3 || s.Misses != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestLRUExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Minute).WithClock(clk.now)

	c.Set("k", 42)
	clk.advance(30 * time.Second)
	if v, ok := c.Get("k"); !ok || v != 42 {
		t.Fatalf("Get = %v, %v", v, ok)
	}

	c.Set("other", 1)
	clk.advance(45 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("k should have expired")
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d, want 1", c.Size())
	}

	clk.advance(time.Minute)
	if n := c.CleanExpired(); n != 1 || c.Size() != 0 {
		t.Fatalf("CleanExpired = %d, size %d", n, c.Size())
	}
}

func TestLRUOverwriteAndPurge(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("k", "v1")
	c.Set("k", "v2")
	if v, _ := c.Get("k"); v != "v2" || c.Size() != 1 {
		t.Fatalf("Get = %q, size %d", v, c.Size())
	}
	c.Delete("k")
	c.Set("x", "y")
	c.Purge()
	if c.Size() != 0 {
		t.Fatalf("size after purge = %d", c.Size())
	}
}

func TestJanitorSweep(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](4, time.Second).WithClock(clk.now)
	c.Set("a", 1)
	c.Set("b", 2)

	j := NewJanitor(nil)
	j.Register(c)
	clk.advance(2 * time.Second)
	if n := j.Sweep(); n != 2 {
		t.Fatalf("Sweep = %d, want 2", n)
	}

	j.Start(time.Hour)
	j.Stop()
	j.Stop()
}
