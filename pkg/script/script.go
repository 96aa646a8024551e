// Package script describes the shell commands embedded in dynamic strings and
// provides an os/exec backed runner that turns them into streams of output.
package script

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Mode controls how often a script is executed.
type Mode string

const (
	// ModeOnce runs the command a single time.
	ModeOnce Mode = "once"

	// ModePoll runs the command to completion every Interval.
	ModePoll Mode = "poll"

	// ModeWatch starts the command once and streams every line it prints.
	ModeWatch Mode = "watch"
)

const (
	// DefaultMode is used when an expression does not name a mode.
	DefaultMode = ModePoll

	// DefaultInterval is used when an expression does not name an interval.
	DefaultInterval = 5000 * time.Millisecond
)

// Script is a compiled command description.
type Script struct {
	// Mode is the execution mode.
	Mode Mode `json:"mode" yaml:"mode"`

	// Interval is the delay between runs in poll mode.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Cmd is the command line passed to the shell.
	Cmd string `json:"cmd" yaml:"cmd"`
}

// Stream identifies which output stream a line came from.
type Stream string

const (
	// Stdout is primary output; it is what gets rendered.
	Stdout Stream = "stdout"

	// Stderr is diagnostic output, including exit status reports.
	Stderr Stream = "stderr"
)

// Output is a single event produced by a running script.
type Output struct {
	Stream Stream `json:"stream"`
	Text   string `json:"text"`
}

// Parse compiles an expression of the form [mode:][interval:]cmd.
//
// The mode is one of once/o, poll/p or watch/w and the interval is given in
// milliseconds. Prefixes that are neither are left as part of the command, so
// "date +%H:%M" is a single command.
func Parse(expr string) (Script, error) {
	s := Script{
		Mode:     DefaultMode,
		Interval: DefaultInterval,
	}

	rest := expr
	if head, tail, ok := strings.Cut(rest, ":"); ok {
		if mode, isMode := parseMode(head); isMode {
			s.Mode = mode
			rest = tail
		}
	}

	if head, tail, ok := strings.Cut(rest, ":"); ok {
		if ms, err := strconv.ParseUint(strings.TrimSpace(head), 10, 32); err == nil {
			s.Interval = time.Duration(ms) * time.Millisecond
			rest = tail
		}
	}

	s.Cmd = strings.TrimSpace(rest)
	if err := s.Validate(); err != nil {
		return Script{}, err
	}

	return s, nil
}

// MustParse is like Parse but panics on error.
func MustParse(expr string) Script {
	s, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks that the script can be run.
func (s Script) Validate() error {
	if s.Cmd == "" {
		return fmt.Errorf("script command is empty")
	}

	switch s.Mode {
	case ModeOnce, ModeWatch:
	case ModePoll:
		if s.Interval <= 0 {
			return fmt.Errorf("poll interval must be positive, got %s", s.Interval)
		}
	default:
		return fmt.Errorf("unknown script mode: %q", s.Mode)
	}

	return nil
}

// String returns the script in its expression form.
func (s Script) String() string {
	if s.Mode == ModePoll {
		return fmt.Sprintf("%s:%d:%s", s.Mode, s.Interval.Milliseconds(), s.Cmd)
	}
	return fmt.Sprintf("%s:%s", s.Mode, s.Cmd)
}

func parseMode(s string) (Mode, bool) {
	switch strings.TrimSpace(s) {
	case "o", "once":
		return ModeOnce, true
	case "p", "poll":
		return ModePoll, true
	case "w", "watch":
		return ModeWatch, true
	default:
		return "", false
	}
}
