package journal

import (
	"sync"
	"testing"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	if got := c.Current(); got != 0 {
		t.Fatalf("Current() = %d, want 0", got)
	}
	for want := int64(1); want <= 3; want++ {
		if got := c.Next(); got != want {
			t.Errorf("Next() = %d, want %d", got, want)
		}
	}
}

func TestClockAt_Resumes(t *testing.T) {
	c := NewClockAt(41)
	if got := c.Next(); got != 42 {
		t.Errorf("Next() = %d, want 42", got)
	}
}

func TestClock_Concurrent(t *testing.T) {
	c := NewClock()
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 100; k++ {
				if _, dup := seen.LoadOrStore(c.Next(), true); dup {
					t.Error("duplicate seq")
				}
			}
		}()
	}
	wg.Wait()

	if got := c.Current(); got != 1000 {
		t.Errorf("Current() = %d, want 1000", got)
	}
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()
	if len(a) != 36 || a == b {
		t.Errorf("unexpected ids %q, %q", a, b)
	}
	if a[14] != '7' {
		t.Errorf("id %q is not version 7", a)
	}
}

func TestFixedGenerator_Exhausted(t *testing.T) {
	g := NewFixedGenerator("only")
	if got := g.Generate(); got != "only" {
		t.Fatalf("Generate() = %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Error("expected panic after ids exhausted")
		}
	}()
	g.Generate()
}
