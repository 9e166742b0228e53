// Package sse pushes dashboard updates to connected managers as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roadwatch/roadwatch/internal/logger"
	"github.com/roadwatch/roadwatch/internal/ports"
)

const (
	EventConnected = "connected"
	EventDashboard = "dashboard"
)

// Event is the payload of one SSE message
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
	Time int64       `json:"time"`
}

// DashboardUpdate is what subscribers receive when a refresh is published
type DashboardUpdate struct {
	Seq          uint64 `json:"seq"`
	GeneratedAt  int64  `json:"generated_at"`
	Avancement   int    `json:"avancement"`
	TotalPoints  int    `json:"total_points"`
	AnomalyCount int    `json:"anomaly_count"`
}

// Broadcaster fans messages out to every subscribed client. A client whose
// buffer is full is dropped rather than blocking the publisher.
type Broadcaster struct {
	mu        sync.Mutex
	clients   map[string]chan []byte
	buffer    int
	heartbeat time.Duration
	logger    logger.Logger
	now       func() time.Time
}

// NewBroadcaster creates a broadcaster sending a heartbeat comment every heartbeat
func NewBroadcaster(log logger.Logger, heartbeat time.Duration) *Broadcaster {
	if log == nil {
		log = logger.Nop()
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &Broadcaster{
		clients:   make(map[string]chan []byte),
		buffer:    16,
		heartbeat: heartbeat,
		logger:    log,
		now:       time.Now,
	}
}

// Subscribe registers a client that receives complete SSE frames. The returned
// function unsubscribes it; the channel is closed when the client is removed.
func (b *Broadcaster) Subscribe(clientID string) (<-chan []byte, func()) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	if old, ok := b.clients[clientID]; ok {
		close(old)
	}
	b.clients[clientID] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.clients[clientID]; ok && cur == ch {
			delete(b.clients, clientID)
			close(ch)
		}
	}
}

// Broadcast sends an event to every client
func (b *Broadcaster) Broadcast(eventType string, data interface{}) error {
	frame, err := b.frame(eventType, data)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		select {
		case ch <- frame:
		default:
			delete(b.clients, id)
			close(ch)
			b.logger.Warn(context.Background(), "Dropping slow SSE client", map[string]interface{}{"client_id": id})
		}
	}
	return nil
}

// PublishDashboard implements ports.DashboardPublisher
func (b *Broadcaster) PublishDashboard(ctx context.Context, snapshot *ports.DashboardSnapshot) error {
	if snapshot == nil {
		return errors.New("nil dashboard snapshot")
	}
	update := DashboardUpdate{
		Seq:         snapshot.Seq,
		Avancement:  snapshot.Recap.Avancement,
		TotalPoints: snapshot.Recap.TotalPoints,
	}
	if snapshot.Report != nil {
		update.GeneratedAt = snapshot.Report.GeneratedAt.Unix()
		update.AnomalyCount = len(snapshot.Report.Anomalies)
	}
	return b.Broadcast(EventDashboard, update)
}

// Close disconnects every client so their streams end
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.clients {
		delete(b.clients, id)
		close(ch)
	}
}

// ClientCount returns the number of connected clients
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP streams events until the client goes away
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	// the stream outlives the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.NewString()
	}
	messages, unsubscribe := b.Subscribe(clientID)
	defer unsubscribe()

	b.logger.Info(r.Context(), "SSE client connected", map[string]interface{}{"client_id": clientID})
	defer b.logger.Info(r.Context(), "SSE client disconnected", map[string]interface{}{"client_id": clientID})

	hello, err := b.frame(EventConnected, map[string]string{"client_id": clientID})
	if err != nil {
		return
	}
	if _, err := w.Write(hello); err != nil || rc.Flush() != nil {
		return
	}

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-messages:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (b *Broadcaster) frame(eventType string, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data, Time: b.now().Unix()})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)), nil
}
