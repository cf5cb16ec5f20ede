package cache

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCache_BasicOperations(t *testing.T) {
	c := NewCache[string, int]()

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected missing key to be absent")
	}

	c.Set("a", 1)
	c.Set("b", 2)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v, want 1, true", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Expected a to be deleted")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestCache_GetOrCreate(t *testing.T) {
	t.Run("creates once", func(t *testing.T) {
		c := NewCache[string, string]()
		calls := 0
		create := func() (string, error) {
			calls++
			return "value", nil
		}

		v, created, err := c.GetOrCreate("k", create)
		if err != nil || !created || v != "value" {
			t.Fatalf("first GetOrCreate = %q, %v, %v", v, created, err)
		}
		v, created, err = c.GetOrCreate("k", create)
		if err != nil || created || v != "value" {
			t.Fatalf("second GetOrCreate = %q, %v, %v", v, created, err)
		}
		if calls != 1 {
			t.Errorf("create called %d times, want 1", calls)
		}
	})

	t.Run("error is not cached", func(t *testing.T) {
		c := NewCache[string, string]()
		boom := errors.New("boom")

		if _, _, err := c.GetOrCreate("k", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
			t.Fatalf("GetOrCreate error = %v, want boom", err)
		}
		if c.Len() != 0 {
			t.Errorf("Len() = %d after failed create, want 0", c.Len())
		}
	})

	t.Run("concurrent callers share one value", func(t *testing.T) {
		c := NewCache[int, *int]()
		var calls atomic.Int32
		var wg sync.WaitGroup
		results := make([]*int, 50)

		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				v, _, _ := c.GetOrCreate(7, func() (*int, error) {
					calls.Add(1)
					n := 7
					return &n, nil
				})
				results[i] = v
			}(i)
		}
		wg.Wait()

		if calls.Load() != 1 {
			t.Errorf("create called %d times, want 1", calls.Load())
		}
		for i, r := range results {
			if r != results[0] {
				t.Fatalf("result %d differs from result 0", i)
			}
		}
	})
}

func TestCache_TakeAndDrain(t *testing.T) {
	c := NewCache[string, int]()
	for i := range 3 {
		c.Set(fmt.Sprintf("k%d", i), i)
	}

	v, ok := c.Take("k1")
	if !ok || v != 1 {
		t.Errorf("Take(k1) = %d, %v, want 1, true", v, ok)
	}
	if _, ok := c.Take("k1"); ok {
		t.Error("Expected second Take to miss")
	}

	items := c.Drain()
	if len(items) != 2 {
		t.Errorf("Drain returned %d items, want 2", len(items))
	}
	if c.Len() != 0 {
		t.Errorf("Len() after Drain = %d, want 0", c.Len())
	}
}

func TestCache_Concurrency(t *testing.T) {
	c := NewCache[int, int]()
	var wg sync.WaitGroup

	for g := range 10 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := range 100 {
				key := g*100 + i
				c.Set(key, key)
				if v, ok := c.Get(key); !ok || v != key {
					t.Errorf("Get(%d) = %d, %v", key, v, ok)
				}
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}

func BenchmarkCache_Get(b *testing.B) {
	c := NewCache[string, int]()
	for i := range 1000 {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(fmt.Sprintf("k%d", i%1000))
	}
}
