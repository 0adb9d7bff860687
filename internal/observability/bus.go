package observability

import (
	"sync"
	"time"

	"github.com/valter-silva-au/ai-dev-team/pkg/models"
)

// Progress event types published on the bus.
const (
	BusRunProgress  = "run.progress"
	BusRunCompleted = "run.completed"
)

// BusEvent is one progress notification fanned out to live subscribers.
type BusEvent struct {
	Type      string            `json:"type"`
	RunID     string            `json:"run_id"`
	Message   string            `json:"message,omitempty"`
	Status    models.RunStatus  `json:"status,omitempty"`
	Result    *models.RunResult `json:"result,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// EventBus is a pub/sub bus for run progress. Publishing never blocks: a
// subscriber whose buffer is full misses events.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan BusEvent
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel that receives events.
func (eb *EventBus) Subscribe() chan BusEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	ch := make(chan BusEvent, 100)
	eb.subscribers = append(eb.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber channel and closes it.
func (eb *EventBus) Unsubscribe(ch chan BusEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// Publish sends an event to all subscribers.
func (eb *EventBus) Publish(evt BusEvent) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Progress publishes a progress message for runID.
func (eb *EventBus) Progress(runID, message string) {
	eb.Publish(BusEvent{Type: BusRunProgress, RunID: runID, Message: message, Status: models.RunRunning})
}

// Complete publishes the terminal result of runID.
func (eb *EventBus) Complete(runID string, result *models.RunResult) {
	evt := BusEvent{Type: BusRunCompleted, RunID: runID, Result: result}
	if result != nil {
		evt.Status = result.Status
		evt.Message = result.Message
	}
	eb.Publish(evt)
}
