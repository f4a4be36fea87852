package sse

import (
	"context"
	"encoding/json"

	"github.com/kbukum/lifecycle/component"
	"github.com/kbukum/lifecycle/logger"
)

// EventStream forwards registry events to a Broadcaster as JSON.
type EventStream struct {
	b Broadcaster
}

var _ component.Observer = (*EventStream)(nil)

// NewEventStream creates an observer that broadcasts on b.
func NewEventStream(b Broadcaster) *EventStream {
	return &EventStream{b: b}
}

// OnEvent implements component.Observer.
func (s *EventStream) OnEvent(_ context.Context, e component.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		logger.Warn("[SSE] Could not encode registry event", map[string]interface{}{
			logger.FieldComponent: e.Component,
			logger.FieldError:     err.Error(),
		})
		return
	}
	s.b.Broadcast(e.Component, string(e.Kind), data)
}
