package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskboard/internal/services"
)

type EventHandler struct {
	service services.EventService
	tasks   services.TaskService
}

func NewEventHandler(service services.EventService, tasks services.TaskService) *EventHandler {
	return &EventHandler{service: service, tasks: tasks}
}

// GET /events?task_id=&limit=
func (h *EventHandler) List(c *gin.Context) {
	userID, _ := getUserAndRole(c)

	taskID, err := strconv.ParseInt(c.Query("task_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_id"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	// the history is as sensitive as the task itself: same read scope
	task, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, "[events][list]", err)
		return
	}
	if !isAdmin(c) && task.CreatorID != userID && !containsInt64(task.AssigneeIDs, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}

	events, err := h.service.History(c.Request.Context(), taskID, limit)
	if err != nil {
		respondError(c, "[events][list]", err)
		return
	}
	c.JSON(http.StatusOK, events)
}
