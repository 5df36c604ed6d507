package agent

import (
	"sync"
	"time"
)

// EventKind identifies the type of progress event.
type EventKind string

const (
	EventProcessStart  EventKind = "process_start"
	EventContextBuild  EventKind = "context_build"
	EventModelCall     EventKind = "model_call"
	EventModelResponse EventKind = "model_response"
	EventToolStart     EventKind = "tool_start"
	EventToolEnd       EventKind = "tool_end"
	EventAutoTest      EventKind = "auto_test"
	EventRepeatWarning EventKind = "repeat_warning"
	EventSummarize     EventKind = "summarize"
	EventProcessEnd    EventKind = "process_end"
	EventError         EventKind = "error"
)

// Event is a typed progress event emitted while a request is processed.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventEmitter delivers typed events to the host via a channel. Emission
// never blocks the loop: a full channel drops the event.
type EventEmitter struct {
	sessionID string
	ch        chan Event
	closed    bool
	mu        sync.Mutex
}

// NewEventEmitter creates an emitter with a buffered channel.
func NewEventEmitter(sessionID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		sessionID: sessionID,
		ch:        make(chan Event, bufferSize),
	}
}

// Emit sends an event. Events emitted after Close are silently dropped.
func (e *EventEmitter) Emit(kind EventKind, data map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event := Event{
		Kind:      kind,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	}
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than stall the loop.
	}
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan Event {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
