// Package events is the in-process pub/sub bus tying connectivity changes
// and verification outcomes to the components that react to them. Handlers
// run on their own goroutines; a slow handler never blocks a publisher.
package events

import (
	"context"
	"sync"
	"time"

	"sevadesk/internal/logger"

	"github.com/google/uuid"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const (
	CONNECTIVITY_CHANNEL Channel = "connectivity"
	SUGGESTION_CHANNEL   Channel = "suggestions"
)

type MessageType string

const (
	ONLINE               MessageType = "online"
	OFFLINE              MessageType = "offline"
	SUGGESTION_APPROVED  MessageType = "suggestion_approved"
	SUGGESTION_REJECTED  MessageType = "suggestion_rejected"
	INDEX_REFRESH_NEEDED MessageType = "index_refresh_needed"
)

type Event struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	Channel   Channel        `json:"channel"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

type EventHandler func(event Event) error

type EventBus struct {
	logger   logger.Logger
	handlers map[Channel][]EventHandler
	mutex    sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func New() *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventBus{
		logger:   logger.New("EventBus"),
		handlers: make(map[Channel][]EventHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (eb *EventBus) Publish(channel Channel, event Event) {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Channel == "" {
		event.Channel = channel
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)
	eb.notifyHandlers(channel, event)
}

func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) {
	log := eb.logger.Function("Subscribe")

	eb.mutex.Lock()
	eb.handlers[channel] = append(eb.handlers[channel], handler)
	eb.mutex.Unlock()

	log.Info("Handler subscribed to channel", "channel", channel)
}

func (eb *EventBus) notifyHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyHandlers")

	eb.mutex.RLock()
	handlers := make([]EventHandler, len(eb.handlers[channel]))
	copy(handlers, eb.handlers[channel])
	eb.mutex.RUnlock()

	for i, handler := range handlers {
		if eb.ctx.Err() != nil {
			return
		}

		eb.wg.Add(1)
		go func(h EventHandler, handlerIndex int) {
			defer eb.wg.Done()
			if err := h(event); err != nil {
				log.Er(
					"handler failed",
					err,
					"channel", channel,
					"eventID", event.ID,
					"handlerIndex", handlerIndex,
				)
			}
		}(handler, i)
	}
}

// Close stops dispatching and waits for in-flight handlers to finish.
func (eb *EventBus) Close() error {
	log := eb.logger.Function("Close")

	eb.cancel()
	eb.wg.Wait()

	log.Info("EventBus closed")
	return nil
}

// PublishConnectivity reports an online/offline edge observed by the probe.
func (eb *EventBus) PublishConnectivity(online bool) {
	eventType := OFFLINE
	if online {
		eventType = ONLINE
	}
	eb.Publish(CONNECTIVITY_CHANNEL, Event{
		Type: eventType,
		Data: map[string]any{"online": online},
	})
}

// PublishSuggestionDecision reports a verification outcome so the
// suggestion index can be refreshed.
func (eb *EventBus) PublishSuggestionDecision(approved bool, serviceName string) {
	eventType := SUGGESTION_REJECTED
	if approved {
		eventType = SUGGESTION_APPROVED
	}
	eb.Publish(SUGGESTION_CHANNEL, Event{
		Type: eventType,
		Data: map[string]any{"service": serviceName},
	})
}
