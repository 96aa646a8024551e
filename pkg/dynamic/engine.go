package dynamic

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/A-Cloud-Ninja/ironbar/pkg/ironvar"
	"github.com/A-Cloud-Ninja/ironbar/pkg/script"
	"github.com/A-Cloud-Ninja/ironbar/pkg/telemetry"
)

// ErrEngineClosed is returned by Subscribe after Close.
var ErrEngineClosed = errors.New("engine closed")

// CommandRunner runs a command and streams its output. The channel is
// closed when the command finishes or ctx is cancelled.
type CommandRunner interface {
	Run(ctx context.Context, s script.Script) (<-chan script.Output, error)
}

// VariableStore streams the values of a named variable. The first value
// sent is the current one.
type VariableStore interface {
	Subscribe(ctx context.Context, name string) (<-chan ironvar.Value, error)
}

// Options configures an Engine.
type Options struct {
	// Runner runs command segments. Required.
	Runner CommandRunner

	// Variables resolves #name segments. When nil, variable syntax is
	// disabled and #name is plain text.
	Variables VariableStore

	// Loop delivers renders. When nil, the engine starts and owns a loop.
	Loop *MainLoop

	// Telemetry defaults to a no-op instance.
	Telemetry *telemetry.Telemetry
}

// Engine compiles templates and runs their producers.
type Engine struct {
	runner    CommandRunner
	variables VariableStore
	loop      *MainLoop
	ownsLoop  bool
	parser    *Parser
	tel       *telemetry.Telemetry
	logger    *telemetry.Logger

	mu      sync.Mutex
	handles map[string]*Handle
	closed  bool
}

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("command runner is required")
	}

	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NewNop()
	}

	e := &Engine{
		runner:    opts.Runner,
		variables: opts.Variables,
		loop:      opts.Loop,
		parser:    NewParser(opts.Variables != nil),
		tel:       tel,
		logger:    tel.Logger.NewComponentLogger("dynamic"),
		handles:   make(map[string]*Handle),
	}

	if e.loop == nil {
		e.loop = NewMainLoop()
		e.loop.Start(context.Background())
		e.ownsLoop = true
	}

	return e, nil
}

// Loop returns the loop renders are delivered on.
func (e *Engine) Loop() *MainLoop {
	return e.loop
}

// Template is a parsed template with its commands compiled.
type Template struct {
	Input    string
	Segments []Segment

	scripts map[int]script.Script
}

// Dynamic returns the number of segments that need a producer.
func (t *Template) Dynamic() int {
	n := 0
	for _, s := range t.Segments {
		if s.IsDynamic() {
			n++
		}
	}
	return n
}

// Script returns the compiled command of segment index.
func (t *Template) Script(index int) (script.Script, bool) {
	s, ok := t.scripts[index]
	return s, ok
}

// Compile parses input and compiles every command expression.
func (e *Engine) Compile(input string) (*Template, error) {
	segments, err := e.parser.Parse(input)
	if err != nil {
		e.tel.Metrics.RecordParseError(ErrorCode(err))
		return nil, err
	}

	tmpl := &Template{
		Input:    input,
		Segments: segments,
		scripts:  make(map[int]script.Script),
	}

	for i, seg := range segments {
		if seg.Kind != SegmentCommand {
			continue
		}
		s, err := script.Parse(seg.Value)
		if err != nil {
			e.tel.Metrics.RecordParseError(ErrCodeInvalidCommand)
			return nil, NewParseError(fmt.Sprintf("invalid command expression %q", seg.Value), err).
				WithCode(ErrCodeInvalidCommand).
				WithSegment(i)
		}
		tmpl.scripts[i] = s
	}

	return tmpl, nil
}

// Subscribe compiles input and starts delivering its renders to fn. The
// first render is always the join of the static text with every dynamic
// segment empty. The subscription lasts until the handle is closed, fn
// returns false, or ctx is done.
func (e *Engine) Subscribe(ctx context.Context, input string, fn RenderFunc) (*Handle, error) {
	tmpl, err := e.Compile(input)
	if err != nil {
		return nil, err
	}
	return e.SubscribeTemplate(ctx, tmpl, fn)
}

// SubscribeTemplate starts delivering renders of a compiled template to fn.
// A template with variable segments is rejected by an engine that has no
// variable store.
func (e *Engine) SubscribeTemplate(ctx context.Context, tmpl *Template, fn RenderFunc) (*Handle, error) {
	if fn == nil {
		return nil, fmt.Errorf("render callback is required")
	}
	if e.variables == nil {
		for i, seg := range tmpl.Segments {
			if seg.Kind == SegmentVariable {
				e.tel.Metrics.RecordParseError(ErrCodeVariablesDisabled)
				return nil, NewParseError(fmt.Sprintf("variable #%s used but variables are disabled", seg.Value), nil).
					WithCode(ErrCodeVariablesDisabled).
					WithSegment(i)
			}
		}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrEngineClosed
	}

	id := uuid.New().String()
	spanCtx, span := e.tel.Tracer.StartTemplateSpan(ctx, id, len(tmpl.Segments))
	pctx, cancel := context.WithCancel(spanCtx)

	h := &Handle{
		id:     id,
		engine: e,
		tmpl:   tmpl,
		agg:    NewAggregator(len(tmpl.Segments)),
		ctx:    pctx,
		cancel: cancel,
		span:   span,
		logger: e.logger.WithTemplateID(id),
		done:   make(chan struct{}),
	}
	h.ch = newRenderChannel(e.loop, fn, func() { go h.Close() }, e.tel.Metrics)
	// counted up front so a concurrent Close waits for producers not yet started
	producers := tmpl.Dynamic()
	h.wg.Add(producers)
	e.handles[id] = h
	e.mu.Unlock()

	for i, seg := range tmpl.Segments {
		if seg.Kind == SegmentStatic {
			h.agg.Set(i, seg.Value)
		}
	}

	e.tel.Metrics.TemplateSubscribed()
	_ = e.tel.Events.PublishTemplateSubscribed(id, tmpl.Input, producers)
	h.logger.Debugf("subscribed %q with %d producers", tmpl.Input, producers)

	// The initial render is queued before any producer can write.
	if err := h.ch.Send(h.agg.Join()); err != nil {
		h.wg.Add(-producers)
		h.Close()
		return nil, err
	}

	for i, seg := range tmpl.Segments {
		switch seg.Kind {
		case SegmentCommand:
			go h.runCommand(i, tmpl.scripts[i])
		case SegmentVariable:
			go h.runVariable(i, seg.Value)
		}
	}

	h.closeWith(ctx)

	return h, nil
}

// closeWith ties the handle to ctx. It does nothing once Close has begun.
func (h *Handle) closeWith(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return
	}
	h.stopOnCancel = context.AfterFunc(ctx, h.Close)
}

// Close closes every live subscription and, if the engine owns its loop,
// stops the loop.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	handles := make([]*Handle, 0, len(e.handles))
	for _, h := range e.handles {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	for _, h := range handles {
		h.Close()
	}

	if e.ownsLoop {
		e.loop.Stop()
	}
}

// Active returns the number of live subscriptions.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func (e *Engine) remove(id string) {
	e.mu.Lock()
	delete(e.handles, id)
	e.mu.Unlock()
}

// Handle controls one subscription.
type Handle struct {
	id     string
	engine *Engine
	tmpl   *Template
	agg    *Aggregator
	ch     *renderChannel
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span
	logger *telemetry.Logger

	mu           sync.Mutex
	closing      bool
	stopOnCancel func() bool

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// ID returns the subscription's unique identifier.
func (h *Handle) ID() string {
	return h.id
}

// Template returns the compiled template.
func (h *Handle) Template() *Template {
	return h.tmpl
}

// Render returns the current render without queueing it.
func (h *Handle) Render() string {
	return h.agg.Join()
}

// Renders returns the number of renders delivered so far.
func (h *Handle) Renders() int64 {
	return h.ch.Delivered()
}

// Close cancels every producer and waits for them to exit. Renders still
// queued on the loop are discarded; a callback already running when Close
// is called may finish after it returns. Close is safe to call more than
// once and from inside the render callback.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		h.ch.close()
		h.wg.Wait()

		h.mu.Lock()
		h.closing = true
		if h.stopOnCancel != nil {
			h.stopOnCancel()
		}
		h.mu.Unlock()

		telemetry.RecordSuccess(h.span)
		h.span.End()

		e := h.engine
		e.remove(h.id)
		e.tel.Metrics.TemplateClosed()
		_ = e.tel.Events.PublishTemplateClosed(h.id, h.ch.Delivered())
		h.logger.Debug("subscription closed")

		close(h.done)
	})
}

// Done is closed once the subscription has been torn down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
