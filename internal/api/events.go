package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gofolio/internal/logger"
	"gofolio/internal/notify"
)

const (
	eventTypeConnected = "connected"
	eventTypeChange    = "change"
	eventBufferSize    = 64
)

type changeEvent struct {
	Category notify.Category `json:"category"`
}

// events streams change signals to the admin dashboard as Server-Sent Events
// GET /api/v1/admin/events
func (r *Router) events(c *gin.Context) {
	changes := make(chan notify.Category, eventBufferSize)
	for _, category := range r.catalog.Categories() {
		sub := r.notifier.Subscribe(category, func() {
			select {
			case changes <- category:
			default:
				r.logger.Debug("SSE client too slow, dropping change event",
					logger.String("category", string(category)),
				)
			}
		})
		defer sub.Unsubscribe()
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})

	setSSEHeaders(c.Writer)
	c.Status(http.StatusOK)
	if err := writeEvent(c.Writer, eventTypeConnected, gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		r.logger.Debug("SSE write failed (client likely disconnected)", logger.Error(err))
		return
	}

	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case category := <-changes:
			if err := writeEvent(c.Writer, eventTypeChange, changeEvent{Category: category}); err != nil {
				r.logger.Debug("SSE write failed (client likely disconnected)", logger.Error(err))
				return
			}
		case <-ticker.C:
			if err := writeHeartbeat(c.Writer); err != nil {
				r.logger.Debug("SSE heartbeat failed (client disconnected)")
				return
			}
		case <-c.Request.Context().Done():
			return
		}
	}
}

// setSSEHeaders sets the standard SSE headers on a Gin response writer.
func setSSEHeaders(w gin.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// writeEvent writes one SSE event with a JSON payload and flushes it.
func writeEvent(w gin.ResponseWriter, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	w.Flush()
	return nil
}

// writeHeartbeat writes an SSE comment to keep the connection alive.
func writeHeartbeat(w gin.ResponseWriter) error {
	if _, err := fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("write heartbeat: %w", err)
	}
	w.Flush()
	return nil
}
