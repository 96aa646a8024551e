package script

import (
	"context"
	"strings"
	"testing"
	"time"
)

func collect(t *testing.T, ch <-chan Output, timeout time.Duration) []Output {
	t.Helper()

	var outputs []Output
	deadline := time.After(timeout)
	for {
		select {
		case o, ok := <-ch:
			if !ok {
				return outputs
			}
			outputs = append(outputs, o)
		case <-deadline:
			t.Fatalf("timed out waiting for output stream to close, got %v", outputs)
		}
	}
}

func TestRunner_Once(t *testing.T) {
	r := NewRunner()

	ch, err := r.Run(context.Background(), MustParse("once:echo '  hello  '"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outputs := collect(t, ch, 5*time.Second)
	if len(outputs) != 1 {
		t.Fatalf("expected 1 output, got %v", outputs)
	}
	if outputs[0] != (Output{Stream: Stdout, Text: "hello"}) {
		t.Errorf("unexpected output: %+v", outputs[0])
	}
}

func TestRunner_OnceFailure(t *testing.T) {
	r := NewRunner()

	ch, err := r.Run(context.Background(), MustParse("once:echo oops >&2; exit 3"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outputs := collect(t, ch, 5*time.Second)
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %v", outputs)
	}
	if outputs[0] != (Output{Stream: Stderr, Text: "oops"}) {
		t.Errorf("unexpected first output: %+v", outputs[0])
	}
	if outputs[1].Stream != Stderr || !strings.Contains(outputs[1].Text, "status 3") {
		t.Errorf("unexpected exit output: %+v", outputs[1])
	}
}

func TestRunner_Watch(t *testing.T) {
	r := NewRunner()

	ch, err := r.Run(context.Background(), MustParse("watch:printf 'a\\nb\\nc\\n'"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outputs := collect(t, ch, 5*time.Second)
	var lines []string
	for _, o := range outputs {
		if o.Stream != Stdout {
			t.Fatalf("unexpected stream: %+v", o)
		}
		lines = append(lines, o.Text)
	}
	if strings.Join(lines, ",") != "a,b,c" {
		t.Errorf("lines = %v", lines)
	}
}

func TestRunner_PollRepeatsUntilCancelled(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := r.Run(ctx, MustParse("poll:10:echo tick"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case o := <-ch:
			if o.Text != "tick" {
				t.Fatalf("unexpected output: %+v", o)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for poll output")
		}
	}

	cancel()
	collect(t, ch, 5*time.Second)
}

func TestRunner_WatchCancelled(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := r.Run(ctx, MustParse("watch:echo start; sleep 30"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	select {
	case o := <-ch:
		if o.Text != "start" {
			t.Fatalf("unexpected output: %+v", o)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch output")
	}

	cancel()
	collect(t, ch, 5*time.Second)
}

func TestRunner_Env(t *testing.T) {
	r := NewRunner(WithEnv("IRONBAR_TEST=42"))

	ch, err := r.Run(context.Background(), MustParse("once:echo $IRONBAR_TEST"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	outputs := collect(t, ch, 5*time.Second)
	if len(outputs) != 1 || outputs[0].Text != "42" {
		t.Errorf("unexpected outputs: %v", outputs)
	}
}

func TestRunner_InvalidScript(t *testing.T) {
	if _, err := NewRunner().Run(context.Background(), Script{Mode: ModeOnce}); err == nil {
		t.Error("expected error for empty command")
	}
}
