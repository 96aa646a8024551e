package dynamic

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
)

func TestAggregatorApply(t *testing.T) {
	a := NewAggregator(3)
	a.Set(1, " ")

	if got := a.Join(); got != " " {
		t.Fatalf("Join() = %q, want %q", got, " ")
	}
	if got := a.Apply(0, "A"); got != "A " {
		t.Errorf("Apply(0) = %q, want %q", got, "A ")
	}
	if got := a.Apply(2, "B"); got != "A B" {
		t.Errorf("Apply(2) = %q, want %q", got, "A B")
	}
	if got := a.Apply(0, ""); got != " B" {
		t.Errorf("Apply(0, empty) = %q, want %q", got, " B")
	}
	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
}

func TestAggregatorSnapshotConsistency(t *testing.T) {
	const updates = 500

	a := NewAggregator(3)
	a.Set(0, "a000")
	a.Set(1, "-")
	a.Set(2, "b000")

	pattern := regexp.MustCompile(`^a\d{3}-b\d{3}$`)

	var wg sync.WaitGroup
	errs := make(chan string, 2*updates)
	for slot, prefix := range map[int]string{0: "a", 2: "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= updates; i++ {
				render := a.Apply(slot, fmt.Sprintf("%s%03d", prefix, i))
				if !pattern.MatchString(render) {
					errs <- render
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for render := range errs {
		t.Errorf("inconsistent render %q", render)
	}
	if got, want := a.Join(), fmt.Sprintf("a%03d-b%03d", updates, updates); got != want {
		t.Errorf("final Join() = %q, want %q", got, want)
	}
}

func TestAggregatorUpdateEmitsInOrder(t *testing.T) {
	a := NewAggregator(2)

	var mu sync.Mutex
	var emitted []string
	emit := func(s string) error {
		mu.Lock()
		emitted = append(emitted, s)
		mu.Unlock()
		return nil
	}

	var wg sync.WaitGroup
	for slot := 0; slot < 2; slot++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = a.Update(slot, fmt.Sprintf("%d", i%10), emit)
			}
		}()
	}
	wg.Wait()

	// the last emitted render must match the final slot table
	if got := emitted[len(emitted)-1]; got != a.Join() {
		t.Errorf("last emitted = %q, Join() = %q", got, a.Join())
	}
	if len(emitted) != 200 {
		t.Errorf("emitted %d renders, want 200", len(emitted))
	}
}

func TestAggregatorUpdatePropagatesEmitError(t *testing.T) {
	a := NewAggregator(1)
	err := a.Update(0, "x", func(string) error { return ErrChannelClosed })
	if err != ErrChannelClosed {
		t.Errorf("Update() error = %v, want ErrChannelClosed", err)
	}
}
