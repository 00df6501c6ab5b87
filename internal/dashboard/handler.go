package dashboard

import (
	"context"
	"log"
	"os"
	"sync/atomic"

	"github.com/mschirtzinger/practicesync/internal/notify"
)

var topicMessages = map[notify.Topic]MessageType{
	notify.TopicCatalog:   MessageTypeCatalog,
	notify.TopicSelection: MessageTypeSelection,
	notify.TopicTimer:     MessageTypeTimer,
	notify.TopicOvertime:  MessageTypeOvertime,
	notify.TopicSave:      MessageTypeSave,
}

// Handler forwards broker events to a dashboard server.
type Handler struct {
	server *Server
	logger *log.Logger

	forwarded atomic.Int64
}

// NewHandler creates a handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, logger: logger}
}

// Run subscribes to broker and forwards events until ctx is done or the
// broker closes.
func (h *Handler) Run(ctx context.Context, broker *notify.Broker) {
	events, cancel := broker.Subscribe(256)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Forward(ev)
		}
	}
}

// Forward converts one broker event into a dashboard message.
func (h *Handler) Forward(ev notify.Event) {
	typ, ok := topicMessages[ev.Topic]
	if !ok {
		return
	}
	if err := h.server.Publish(typ, ev.Data); err != nil {
		h.logger.Printf("Failed to forward %s event: %v", ev.Topic, err)
		return
	}
	h.forwarded.Add(1)
}

// Forwarded returns the number of events sent on to the server.
func (h *Handler) Forwarded() int64 {
	return h.forwarded.Load()
}
