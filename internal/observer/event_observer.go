package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/pkg/models"
)

// EventType represents the type of state change being announced
type EventType string

const (
	ProcessingChanged EventType = "processing_changed"
	ResultChanged     EventType = "result_changed"
	ResultsCleared    EventType = "results_cleared"
	MediaChanged      EventType = "media_changed"
	StreamStarted     EventType = "stream_started"
	StreamStopped     EventType = "stream_stopped"
	InferenceFailed   EventType = "inference_failed"
	SettingsChanged   EventType = "settings_changed"
	SettingsPersisted EventType = "settings_persisted"
	HistoryChanged    EventType = "history_changed"
)

// Event is one change notification
type Event struct {
	Type         EventType              `json:"type"`
	Mode         models.AnalysisMode    `json:"mode,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Duration     time.Duration          `json:"duration,omitempty"`
	Success      bool                   `json:"success"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event Event)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event Event)
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu          sync.RWMutex
	observers   []Observer
	synchronous bool
}

// NewEventPublisher creates a publisher that notifies each observer in its own goroutine
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// NewSyncEventPublisher creates a publisher that notifies observers inline, in
// subscription order
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers:   make([]Observer, 0),
		synchronous: true,
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer by name
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		if p.synchronous {
			deliver(ctx, observer, event)
			continue
		}
		go deliver(ctx, observer, event)
	}
}

func deliver(ctx context.Context, obs Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}

// LoggingObserver logs events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) *LoggingObserver {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event Event) {
	fields := logrus.Fields{
		"event_type": event.Type,
		"success":    event.Success,
	}
	if event.Mode != "" {
		fields["mode"] = event.Mode
	}
	if event.Duration > 0 {
		fields["duration"] = event.Duration
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.Type {
	case InferenceFailed:
		entry.Warn("Inference failed")
	case ResultChanged:
		entry.Debug("Analysis result stored")
	case ProcessingChanged:
		entry.Debug("Processing state changed")
	case StreamStarted:
		entry.Info("Video stream started")
	case StreamStopped:
		entry.Info("Video stream stopped")
	case MediaChanged:
		entry.Info("Media element replaced")
	case SettingsPersisted:
		if event.Success {
			entry.Debug("Settings persisted")
		} else {
			entry.Warn("Settings could not be persisted")
		}
	case HistoryChanged:
		if event.Success {
			entry.Info("History updated")
		} else {
			entry.Warn("History update failed")
		}
	default:
		entry.Debug("State event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// StreamObserver buffers events for a single consumer such as a websocket.
// Events are dropped when the buffer is full.
type StreamObserver struct {
	name   string
	events chan Event
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewStreamObserver creates a stream observer with a unique name
func NewStreamObserver(name string, buffer int) *StreamObserver {
	return &StreamObserver{
		name:   name,
		events: make(chan Event, buffer),
	}
}

// OnEvent enqueues the event without blocking
func (o *StreamObserver) OnEvent(ctx context.Context, event Event) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.events <- event:
	default:
	}
}

// Events returns the receive side of the buffer
func (o *StreamObserver) Events() <-chan Event {
	return o.events
}

// Close stops delivery and closes the channel
func (o *StreamObserver) Close() {
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
	})
}

// GetObserverName returns the observer name
func (o *StreamObserver) GetObserverName() string {
	return o.name
}
