package dynamic

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

func TestRenderChannelIsUnbounded(t *testing.T) {
	const n = 1000

	loop := NewMainLoop()

	var mu sync.Mutex
	var got []string
	all := make(chan struct{})
	ch := newRenderChannel(loop, func(s string) bool {
		mu.Lock()
		got = append(got, s)
		if len(got) == n {
			close(all)
		}
		mu.Unlock()
		return true
	}, nil, telemetry.NewNopMetrics())

	// nothing drains until the loop runs, so Send must never block
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		v := fmt.Sprintf("render-%d", i)
		want = append(want, v)
		if err := ch.Send(v); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if ch.Pending() != n {
		t.Fatalf("Pending() = %d, want %d", ch.Pending(), n)
	}

	loop.Start(context.Background())
	defer loop.Stop()

	select {
	case <-all:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for renders")
	}

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
	if ch.Delivered() != n {
		t.Errorf("Delivered() = %d, want %d", ch.Delivered(), n)
	}
}

func TestRenderChannelDetach(t *testing.T) {
	loop := NewMainLoop()
	loop.Start(context.Background())
	defer loop.Stop()

	detached := make(chan struct{})
	calls := 0
	ch := newRenderChannel(loop, func(string) bool {
		calls++
		return calls < 2
	}, func() { close(detached) }, telemetry.NewNopMetrics())

	for i := 0; i < 5; i++ {
		_ = ch.Send("x")
	}

	select {
	case <-detached:
	case <-time.After(2 * time.Second):
		t.Fatal("callback returning false did not detach")
	}

	if err := ch.Send("y"); err != ErrChannelClosed {
		t.Errorf("Send() after detach error = %v, want ErrChannelClosed", err)
	}

	// let any queued deliveries run
	flushed := make(chan struct{})
	loop.Post(func() { close(flushed) })
	<-flushed

	if calls != 2 {
		t.Errorf("callback ran %d times, want 2", calls)
	}
}

func TestRenderChannelCloseDiscardsQueued(t *testing.T) {
	loop := NewMainLoop()

	called := false
	ch := newRenderChannel(loop, func(string) bool {
		called = true
		return true
	}, nil, telemetry.NewNopMetrics())

	_ = ch.Send("a")
	ch.close()

	loop.Start(context.Background())
	defer loop.Stop()

	flushed := make(chan struct{})
	loop.Post(func() { close(flushed) })
	<-flushed

	if called {
		t.Error("callback ran after close")
	}
}

func TestRenderChannelStoppedLoop(t *testing.T) {
	loop := NewMainLoop()
	loop.Stop()

	ch := newRenderChannel(loop, func(string) bool { return true }, nil, telemetry.NewNopMetrics())
	if err := ch.Send("a"); err != ErrChannelClosed {
		t.Errorf("Send() on stopped loop error = %v, want ErrChannelClosed", err)
	}
}
