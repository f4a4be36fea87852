package sse

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kbukum/lifecycle/logger"
)

// KeepAliveInterval is how often an idle stream gets a comment line. It
// stays below common proxy timeouts.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent is sent when a client successfully connects.
type ConnectedEvent struct {
	ClientID string            `json:"client_id"`
	Filter   string            `json:"filter"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ServeSSE streams hub events to one client until the request ends or the
// hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ...ClientOption) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("[SSE] Streaming not supported", map[string]interface{}{
			"client_id": clientID,
		})
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Long-lived stream; the server WriteTimeout must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("[SSE] Could not disable write deadline", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	}

	client := NewClient(clientID, opts...)
	if err := hub.Register(client); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	connected, _ := json.Marshal(ConnectedEvent{
		ClientID: clientID,
		Filter:   client.Filter(),
		Metadata: client.Metadata(),
	})
	_, _ = w.Write(frame(EventTypeConnected, 0, connected))
	flusher.Flush()

	logger.Debug("[SSE] Client connected", map[string]interface{}{
		"client_id":   clientID,
		"filter":      client.Filter(),
		"remote_addr": r.RemoteAddr,
	})

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("[SSE] Client disconnected", map[string]interface{}{
				"client_id": clientID,
				"reason":    ctx.Err().Error(),
			})
			return

		case event, ok := <-client.Events():
			if !ok {
				return
			}
			if _, err := w.Write(event); err != nil {
				return
			}
			flusher.Flush()

		case <-keepAlive.C:
			// Lines starting with ':' are comments.
			_, _ = w.Write([]byte(": " + EventTypeKeepAlive + "\n\n"))
			flusher.Flush()
		}
	}
}
