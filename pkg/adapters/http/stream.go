package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/deployd/pkg/domain"
)

// StreamManager fans lifecycle events out to the SSE clients.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan<- string]struct{}
	logger      *slog.Logger
}

func NewStreamManager(logger *slog.Logger) *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan<- string]struct{}),
		logger:      logger,
	}
}

func (sm *StreamManager) Subscribe() (chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

func (sm *StreamManager) Broadcast(msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message")
		}
	}
}

// Hooks returns lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	process := func(_ context.Context, e *domain.ProcessEvent) {
		sm.publish(e)
	}
	return domain.LifecycleHooks{
		OnSpawn: process,
		OnDead:  process,
		OnTaskDisposed: func(_ context.Context, e *domain.TaskEvent) {
			payload := struct {
				*domain.TaskEvent
				Error string `json:"error,omitempty"`
			}{TaskEvent: e}
			if e.Error != nil {
				payload.Error = e.Error.Error()
			}
			sm.publish(payload)
		},
	}
}

// ModelChanged is broadcast when a deployment model changes on disk.
type ModelChanged struct {
	Type  string `json:"type"`
	Model string `json:"model"`
}

// Forward broadcasts every model name received on changes until the channel
// is closed or ctx is done.
func (sm *StreamManager) Forward(ctx context.Context, changes <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case name, ok := <-changes:
			if !ok {
				return
			}
			sm.logger.Debug("Model changed", "model", name)
			sm.publish(ModelChanged{Type: "model_changed", Model: name})
		}
	}
}

func (sm *StreamManager) publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		sm.logger.Error("SSE: Event encode failed", "err", err)
		return
	}
	sm.Broadcast(string(data))
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.Logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.Logger.Debug("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
