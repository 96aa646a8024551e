package script

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want Script
	}{
		{
			name: "bare command uses defaults",
			expr: "echo hello",
			want: Script{Mode: ModePoll, Interval: DefaultInterval, Cmd: "echo hello"},
		},
		{
			name: "mode and interval",
			expr: "poll:1000:uptime",
			want: Script{Mode: ModePoll, Interval: time.Second, Cmd: "uptime"},
		},
		{
			name: "watch shorthand",
			expr: "w:tail -f /var/log/syslog",
			want: Script{Mode: ModeWatch, Interval: DefaultInterval, Cmd: "tail -f /var/log/syslog"},
		},
		{
			name: "once",
			expr: "once:hostname",
			want: Script{Mode: ModeOnce, Interval: DefaultInterval, Cmd: "hostname"},
		},
		{
			name: "interval without mode",
			expr: "250:date",
			want: Script{Mode: ModePoll, Interval: 250 * time.Millisecond, Cmd: "date"},
		},
		{
			name: "colon inside command",
			expr: "date +%H:%M",
			want: Script{Mode: ModePoll, Interval: DefaultInterval, Cmd: "date +%H:%M"},
		},
		{
			name: "mode followed by command with colon",
			expr: "p:date +%H:%M",
			want: Script{Mode: ModePoll, Interval: DefaultInterval, Cmd: "date +%H:%M"},
		},
		{
			name: "hash is plain text",
			expr: "echo #hello",
			want: Script{Mode: ModePoll, Interval: DefaultInterval, Cmd: "echo #hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, expr := range []string{"", "   ", "poll:", "watch:1000:", "p:0:echo"} {
		if _, err := Parse(expr); err == nil {
			t.Errorf("Parse(%q) expected error", expr)
		}
	}
}

func TestScript_String(t *testing.T) {
	s := MustParse("p:1500:echo hi")
	if got := s.String(); got != "poll:1500:echo hi" {
		t.Errorf("String() = %q", got)
	}

	w := MustParse("w:journalctl -f")
	if got := w.String(); got != "watch:journalctl -f" {
		t.Errorf("String() = %q", got)
	}

	round, err := Parse(s.String())
	if err != nil {
		t.Fatalf("Parse(String()) error: %v", err)
	}
	if round != s {
		t.Errorf("round trip = %+v, want %+v", round, s)
	}
}
