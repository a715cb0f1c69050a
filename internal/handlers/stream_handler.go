package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskboard/internal/realtime"
	"taskboard/internal/services"
)

// StreamHandler serves the server-sent event streams. Each connection
// subscribes to the hub on open and releases everything through one
// deferred close, whichever way the stream ends.
type StreamHandler struct {
	hub       *realtime.Hub
	tasks     services.TaskService
	heartbeat time.Duration
}

func NewStreamHandler(hub *realtime.Hub, tasks services.TaskService, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &StreamHandler{hub: hub, tasks: tasks, heartbeat: heartbeat}
}

// StreamAll serves GET /stream: every task visible to the caller.
func (h *StreamHandler) StreamAll(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[stream][open] userID=%d role=%d scope=all", userID, roleID)
	h.serve(c, userID, 0)
}

// StreamTask serves GET /tasks/:id/stream for a single task.
func (h *StreamHandler) StreamTask(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	taskID, ok := taskIDParam(c)
	if !ok {
		return
	}

	// the caller must be able to see the task before watching it
	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, "[stream][open]", err)
		return
	}
	if !isAdmin(c) && task.CreatorID != userID && !containsInt64(task.AssigneeIDs, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	log.Printf("[stream][open] userID=%d role=%d scope=task:%d", userID, roleID, taskID)
	h.serve(c, userID, taskID)
}

func (h *StreamHandler) serve(c *gin.Context, userID, taskID int64) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	sub := h.hub.Subscribe(userID, isAdmin(c), taskID)
	defer sub.Close() // single cleanup path; safe on every exit

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	if _, err := fmt.Fprint(c.Writer, "data: {\"type\":\"connected\"}\n\n"); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[stream][close] userID=%d client gone", userID)
			return
		case ev, open := <-sub.Events():
			if !open {
				// the hub dropped us (slow consumer); client reconnects
				log.Printf("[stream][close] userID=%d dropped by hub", userID)
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				log.Printf("[stream][err] marshal event %s: %v", ev.ID, err)
				continue
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			// comment frame keeps intermediaries from idling us out
			if _, err := fmt.Fprint(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func containsInt64(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
