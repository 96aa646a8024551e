package dynamic

import (
	"context"
	"testing"
	"time"
)

func TestMainLoopRunsInOrder(t *testing.T) {
	loop := NewMainLoop()
	loop.Start(context.Background())
	defer loop.Stop()

	got := make(chan int, 100)
	for i := 0; i < 100; i++ {
		if !loop.Post(func() { got <- i }) {
			t.Fatal("Post() = false on a running loop")
		}
	}

	for want := 0; want < 100; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("ran %d, want %d", v, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for posted function")
		}
	}
}

func TestMainLoopPostBeforeRun(t *testing.T) {
	loop := NewMainLoop()

	ran := make(chan struct{})
	loop.Post(func() { close(ran) })

	loop.Start(context.Background())
	defer loop.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("function posted before Run never ran")
	}
}

func TestMainLoopStop(t *testing.T) {
	loop := NewMainLoop()
	loop.Start(context.Background())

	loop.Stop()
	loop.Stop()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}

	if loop.Post(func() {}) {
		t.Error("Post() after Stop() = true, want false")
	}
}

func TestMainLoopStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	loop := NewMainLoop()
	loop.Start(ctx)

	cancel()

	select {
	case <-loop.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancel")
	}
}

func TestMainLoopPostFromLoop(t *testing.T) {
	loop := NewMainLoop()
	loop.Start(context.Background())
	defer loop.Stop()

	done := make(chan struct{})
	loop.Post(func() {
		loop.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("nested Post never ran")
	}
}
