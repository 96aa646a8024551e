package ironvar

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func receive(t *testing.T, ch <-chan Value) Value {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	return Value{}
}

func TestStore_SetGet(t *testing.T) {
	s := NewStore(Options{})
	ctx := context.Background()

	if _, ok := s.Get("foo"); ok {
		t.Fatal("expected foo to be unset")
	}

	if err := s.Set(ctx, "foo", "bar"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if v, ok := s.Get("foo"); !ok || v != "bar" {
		t.Errorf("Get(foo) = %q, %v", v, ok)
	}

	if err := s.Unset(ctx, "foo"); err != nil {
		t.Fatalf("Unset failed: %v", err)
	}
	if _, ok := s.Get("foo"); ok {
		t.Error("expected foo to be unset after Unset")
	}
}

func TestStore_InvalidNames(t *testing.T) {
	s := NewStore(Options{})
	for _, name := range []string{"", "has space", "tab\tname"} {
		if err := s.Set(context.Background(), name, "x"); !errors.Is(err, ErrInvalidName) {
			t.Errorf("Set(%q) error = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestStore_SubscribeReceivesCurrentAndUpdates(t *testing.T) {
	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = s.Set(ctx, "volume", "40")

	ch, err := s.Subscribe(ctx, "volume")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	if got := receive(t, ch); got != Some("40") {
		t.Errorf("initial value = %+v", got)
	}

	_ = s.Set(ctx, "volume", "55")
	if got := receive(t, ch); got != Some("55") {
		t.Errorf("updated value = %+v", got)
	}

	_ = s.Unset(ctx, "volume")
	if got := receive(t, ch); got != None {
		t.Errorf("unset value = %+v", got)
	}
}

func TestStore_SubscribeBeforeSet(t *testing.T) {
	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Subscribe(ctx, "later")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	select {
	case v := <-ch:
		t.Fatalf("unexpected value before Set: %+v", v)
	default:
	}

	_ = s.Set(ctx, "later", "now")
	if got := receive(t, ch); got != Some("now") {
		t.Errorf("value = %+v", got)
	}
}

func TestStore_SlowSubscriberSeesLatest(t *testing.T) {
	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, _ := s.Subscribe(ctx, "n")
	for _, v := range []string{"1", "2", "3"} {
		if err := s.Set(ctx, "n", v); err != nil {
			t.Fatalf("Set blocked or failed: %v", err)
		}
	}

	if got := receive(t, ch); got != Some("3") {
		t.Errorf("latest value = %+v", got)
	}
}

func TestStore_SubscriptionClosedOnCancel(t *testing.T) {
	s := NewStore(Options{})
	ctx, cancel := context.WithCancel(context.Background())

	ch, _ := s.Subscribe(ctx, "x")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}

	// publishing after the subscriber left must not panic
	if err := s.Set(context.Background(), "x", "y"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
}

func TestStore_Strict(t *testing.T) {
	s := NewStore(Options{Strict: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := s.Subscribe(ctx, "missing"); !errors.Is(err, ErrUnknownVariable) {
		t.Fatalf("Subscribe error = %v, want ErrUnknownVariable", err)
	}

	_ = s.Set(ctx, "present", "1")
	if _, err := s.Subscribe(ctx, "present"); err != nil {
		t.Fatalf("Subscribe failed for known variable: %v", err)
	}
}

func TestStore_Names(t *testing.T) {
	s := NewStore(Options{})
	ctx := context.Background()
	_ = s.Set(ctx, "b", "2")
	_ = s.Set(ctx, "a", "1")
	_ = s.Set(ctx, "c", "3")
	_ = s.Unset(ctx, "c")

	if diff := cmp.Diff([]string{"a", "b"}, s.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

type memoryPersister struct {
	mu     sync.Mutex
	values map[string]string
	err    error
}

func (m *memoryPersister) Load(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out, m.err
}

func (m *memoryPersister) Save(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.values[name] = value
	return nil
}

func (m *memoryPersister) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, name)
	return m.err
}

func TestStore_PersisterWriteThroughAndRestore(t *testing.T) {
	p := &memoryPersister{values: map[string]string{"restored": "yes"}}
	s := NewStore(Options{Persister: p})
	ctx := context.Background()

	if err := s.Restore(ctx); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if v, ok := s.Get("restored"); !ok || v != "yes" {
		t.Errorf("restored value = %q, %v", v, ok)
	}

	_ = s.Set(ctx, "new", "value")
	_ = s.Unset(ctx, "restored")

	want := map[string]string{"new": "value"}
	if diff := cmp.Diff(want, p.values); diff != "" {
		t.Errorf("persisted values mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_PersisterErrorKeepsOldValue(t *testing.T) {
	p := &memoryPersister{values: map[string]string{}}
	s := NewStore(Options{Persister: p})
	ctx := context.Background()

	_ = s.Set(ctx, "k", "old")
	p.err = errors.New("disk full")

	if err := s.Set(ctx, "k", "new"); err == nil {
		t.Fatal("expected persist error")
	}
	if v, _ := s.Get("k"); v != "old" {
		t.Errorf("value = %q, want old", v)
	}
}

func TestStore_ConcurrentSetKeepsPersisterInSync(t *testing.T) {
	p := &memoryPersister{values: map[string]string{}}
	s := NewStore(Options{Persister: p})
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(v string) {
				defer wg.Done()
				_ = s.Set(ctx, "k", v)
			}(string(rune('a' + i)))
		}
		wg.Wait()

		got, _ := s.Get("k")
		p.mu.Lock()
		saved := p.values["k"]
		p.mu.Unlock()
		if got != saved {
			t.Fatalf("round %d: store has %q, persister has %q", round, got, saved)
		}
	}
}
