//go:build !integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestBounded_EvictsOldestFifth(t *testing.T) {
	c := NewBounded[string, int](10, 0)
	for i := 0; i < 10; i++ {
		if n := c.Add(fmt.Sprintf("k%d", i), i); n != 0 {
			t.Fatalf("unexpected eviction while filling: %d", n)
		}
	}

	evicted := c.Add("k10", 10)

	if evicted != 2 {
		t.Fatalf("expected 2 evictions (20%% of 10), got %d", evicted)
	}
	if c.Len() > c.Capacity() {
		t.Fatalf("size %d exceeds capacity %d", c.Len(), c.Capacity())
	}
	for _, k := range []string{"k0", "k1"} {
		if c.Contains(k) {
			t.Errorf("expected %s to be evicted", k)
		}
	}
	for _, k := range []string{"k2", "k9", "k10"} {
		if !c.Contains(k) {
			t.Errorf("expected %s to be kept", k)
		}
	}
}

func TestBounded_ReadsDoNotRefreshOrder(t *testing.T) {
	c := NewBounded[string, int](5, 0)
	for i := 0; i < 5; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}
	// Reading the oldest entry must not save it from eviction.
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("expected k0 to be present")
	}
	c.Add("k5", 5)
	if c.Contains("k0") {
		t.Error("expected k0 to be evicted despite being read")
	}
}

func TestBounded_UpdateExistingKeyDoesNotEvict(t *testing.T) {
	c := NewBounded[string, int](3, 0)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	if n := c.Add("b", 20); n != 0 {
		t.Fatalf("expected no eviction on update, got %d", n)
	}
	if v, _ := c.Get("b"); v != 20 {
		t.Errorf("expected updated value 20, got %d", v)
	}
}

func TestBounded_ManyInsertsStayWithinCapacity(t *testing.T) {
	c := NewBounded[int, int](100, 0)
	for i := 0; i < 1000; i++ {
		c.Add(i, i)
		if c.Len() > 100 {
			t.Fatalf("size %d exceeds capacity after %d inserts", c.Len(), i+1)
		}
	}
}

func TestBounded_TTL(t *testing.T) {
	c := NewBounded[string, string](10, 50*time.Millisecond)
	c.Add("payment:1", "approved")

	if v, ok := c.Get("payment:1"); !ok || v != "approved" {
		t.Fatalf("expected cached value before TTL, got %q ok=%v", v, ok)
	}

	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get("payment:1"); ok {
		t.Fatal("expected entry to be expired after TTL")
	}
}

func TestMarkerSet(t *testing.T) {
	ctx := context.Background()
	m := NewMarkerSet(1000)

	seen, err := m.Seen(ctx, "payment:123")
	if err != nil || seen {
		t.Fatalf("expected unseen marker, got seen=%v err=%v", seen, err)
	}
	if err := m.Mark(ctx, "payment:123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if seen, _ := m.Seen(ctx, "payment:123"); !seen {
		t.Fatal("expected marker to be seen after Mark")
	}

	for i := 0; i < 1000; i++ {
		_ = m.Mark(ctx, fmt.Sprintf("payment:%d", 1000+i))
	}
	if m.Len() > 1000 {
		t.Fatalf("marker set grew beyond capacity: %d", m.Len())
	}
	if seen, _ := m.Seen(ctx, "payment:123"); seen {
		t.Error("expected the oldest marker to be evicted")
	}
}
