package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a lifecycle notification about a dynamic string or one of its
// producers.
type Event struct {
	ID         string                 `json:"id"`
	Timestamp  time.Time              `json:"timestamp"`
	Type       string                 `json:"type"`
	Source     string                 `json:"source"`
	TemplateID string                 `json:"template_id,omitempty"`
	Segment    int                    `json:"segment,omitempty"`
	Message    string                 `json:"message"`
	Level      string                 `json:"level"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeTemplateSubscribed = "template.subscribed"
	EventTypeTemplateClosed     = "template.closed"
	EventTypeProducerDiagnostic = "producer.diagnostic"
	EventTypeProducerFailed     = "producer.failed"
	EventTypeProducerExited     = "producer.exited"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.EnableAsync && cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("event buffer size must be positive, got %d", cfg.BufferSize)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}

	if cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// NewNopEventPublisher returns a publisher that drops every event.
func NewNopEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishTemplateSubscribed publishes a template.subscribed event.
func (ep *EventPublisher) PublishTemplateSubscribed(templateID, input string, producers int) error {
	return ep.Publish(Event{
		Type:       EventTypeTemplateSubscribed,
		Source:     "dynamic",
		TemplateID: templateID,
		Message:    fmt.Sprintf("Template %s subscribed with %d producers", templateID, producers),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"input":     input,
			"producers": producers,
		},
	})
}

// PublishTemplateClosed publishes a template.closed event.
func (ep *EventPublisher) PublishTemplateClosed(templateID string, renders int64) error {
	return ep.Publish(Event{
		Type:       EventTypeTemplateClosed,
		Source:     "dynamic",
		TemplateID: templateID,
		Message:    fmt.Sprintf("Template %s closed after %d renders", templateID, renders),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"renders": renders,
		},
	})
}

// PublishProducerDiagnostic publishes a producer.diagnostic event.
func (ep *EventPublisher) PublishProducerDiagnostic(templateID string, segment int, text string) error {
	return ep.Publish(Event{
		Type:       EventTypeProducerDiagnostic,
		Source:     "producer",
		TemplateID: templateID,
		Segment:    segment,
		Message:    text,
		Level:      EventLevelWarning,
	})
}

// PublishProducerFailed publishes a producer.failed event.
func (ep *EventPublisher) PublishProducerFailed(templateID string, segment int, reason string) error {
	return ep.Publish(Event{
		Type:       EventTypeProducerFailed,
		Source:     "producer",
		TemplateID: templateID,
		Segment:    segment,
		Message:    fmt.Sprintf("Producer for segment %d failed: %s", segment, reason),
		Level:      EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishProducerExited publishes a producer.exited event.
func (ep *EventPublisher) PublishProducerExited(templateID string, segment int, updates int64) error {
	return ep.Publish(Event{
		Type:       EventTypeProducerExited,
		Source:     "producer",
		TemplateID: templateID,
		Segment:    segment,
		Message:    fmt.Sprintf("Producer for segment %d exited after %d updates", segment, updates),
		Level:      EventLevelInfo,
		Data: map[string]interface{}{
			"updates": updates,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts everything.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents delivers buffered events until shutdown, then drains
// whatever is left.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent delivers an event to all subscribers in order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher and waits for buffered events to be delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByTemplateID creates a filter that only allows events for one template.
func FilterByTemplateID(templateID string) EventFilter {
	return func(event Event) bool {
		return event.TemplateID == templateID
	}
}
