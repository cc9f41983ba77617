package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)

	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	g.Set(100)
	if got := g.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}
}

func TestGuardWrite(t *testing.T) {
	type counter struct{ value int }
	g := NewGuard(counter{value: 0})

	g.Write(func(c *counter) {
		c.value = 42
	})

	if got := g.Get().value; got != 42 {
		t.Errorf("Get().value = %d, want 42", got)
	}
}

func TestGuardConcurrency(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Write(func(v *int) { *v++ })
		}()
	}
	wg.Wait()

	if got := g.Get(); got != 100 {
		t.Errorf("Get() = %d, want 100", got)
	}
}
