// Copyright (c) 2025 The Livetally Authors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// patience bounds how long a slow client may block fan-out before its
// event is dropped.
const patience = time.Second

// Event is one server-sent event addressed to a poll topic.
type Event struct {
	Topic   string
	Name    string
	Payload []byte
}

type subscription struct {
	topic string
	ch    chan Event
}

// Broker fans events out to every subscriber of a poll topic. Delivery is
// best-effort: briefly disconnected clients miss intermediate updates and
// reconcile by re-fetching the poll snapshot.
type Broker struct {
	// Events are pushed here after the originating transaction commits.
	Notifier chan Event

	newClients     chan subscription
	closingClients chan subscription

	// Subscriber registry, keyed by poll id.
	topics map[string]map[chan Event]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		Notifier:       make(chan Event, 8),
		newClients:     make(chan subscription),
		closingClients: make(chan subscription),
		topics:         make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers a new listener for one poll topic.
func (b *Broker) Subscribe(topic string) chan Event {
	ch := make(chan Event, 1)
	b.newClients <- subscription{topic: topic, ch: ch}
	return ch
}

// Unsubscribe removes a listener. Safe to call after the stream handler
// exits for any reason.
func (b *Broker) Unsubscribe(topic string, ch chan Event) {
	b.closingClients <- subscription{topic: topic, ch: ch}
}

// Listen redistributes notifications to subscribers. Run it once, in its
// own goroutine, for the life of the server.
func (b *Broker) Listen() {
	for {
		select {
		case s := <-b.newClients:
			if b.topics[s.topic] == nil {
				b.topics[s.topic] = make(map[chan Event]struct{})
			}
			b.topics[s.topic][s.ch] = struct{}{}
			slog.Info("stream client joined", "topic", s.topic, "clients", len(b.topics[s.topic]))

		case s := <-b.closingClients:
			delete(b.topics[s.topic], s.ch)
			if len(b.topics[s.topic]) == 0 {
				delete(b.topics, s.topic)
			}
			slog.Info("stream client left", "topic", s.topic)

		case event := <-b.Notifier:
			for ch := range b.topics[event.Topic] {
				select {
				case ch <- event:
				case <-time.After(patience):
					slog.Warn("skipping slow stream client", "topic", event.Topic)
				}
			}
		}
	}
}

// ServeHTTP streams events for one poll to a client until it disconnects.
// The topic is the poll id path segment.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("id")
	if topic == "" {
		http.Error(w, "poll id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(topic)
	defer b.Unsubscribe(topic, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Payload)
			flusher.Flush()
		}
	}
}

// marshal encodes a payload, returning nil on failure so a bad payload
// never takes down the publishing request.
func marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to encode event payload", "error", err)
		return nil
	}
	return data
}
