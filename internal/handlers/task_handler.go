package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/services"
)

type TaskHandler struct {
	service services.TaskService
}

func NewTaskHandler(service services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

func taskIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// POST /tasks
func (h *TaskHandler) Create(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[task][create] call by userID=%d role=%d", userID, roleID)

	var req struct {
		GroupID     int64               `json:"group_id" binding:"required"`
		Title       string              `json:"title"`
		Description string              `json:"description"`
		Priority    models.TaskPriority `json:"priority"`
		StartDate   string              `json:"start_date"`
		DueDate     string              `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.service.Create(c.Request.Context(), userID, isAdmin(c), services.CreateTaskInput{
		GroupID:     req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		DueDate:     req.DueDate,
	})
	if err != nil {
		respondError(c, "[task][create]", err)
		return
	}
	log.Printf("[task][create][ok] id=%d group=%d position=%d", task.ID, task.GroupID, task.Position)
	c.JSON(http.StatusCreated, task)
}

// GET /tasks/:id
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	id, ok := taskIDParam(c)
	if !ok {
		return
	}
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, "[task][get]", err)
		return
	}
	// reads are scoped the same way the stream is: creator, assignee, admin
	if !isAdmin(c) && task.CreatorID != userID && !containsInt64(task.AssigneeIDs, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
		return
	}
	c.JSON(http.StatusOK, task)
}

// POST /tasks/:id/move
func (h *TaskHandler) Move(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[task][move] call by userID=%d role=%d id_param=%s", userID, roleID, c.Param("id"))

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	var req struct {
		GroupID  int64 `json:"group_id" binding:"required"`
		Position *int  `json:"position"` // omitted = append to end
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[task][move][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := 0
	if req.Position != nil {
		target = *req.Position
	}

	task, err := h.service.Move(c.Request.Context(), userID, isAdmin(c), id, req.GroupID, target)
	if err != nil {
		respondError(c, "[task][move]", err)
		return
	}
	log.Printf("[task][move][ok] id=%d group=%d position=%d", task.ID, task.GroupID, task.Position)
	c.JSON(http.StatusOK, task)
}

// PUT /tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[task][update] call by userID=%d role=%d id_param=%s", userID, roleID, c.Param("id"))

	id, ok := taskIDParam(c)
	if !ok {
		return
	}

	// unknown fields are rejected, never silently dropped: a client
	// typo must not read as "field not provided"
	var req models.TaskUpdate
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.Printf("[task][update][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, diff, err := h.service.Update(c.Request.Context(), userID, isAdmin(c), id, &req)
	if err != nil {
		respondError(c, "[task][update]", err)
		return
	}
	log.Printf("[task][update][ok] id=%d changes=%d", id, len(diff))
	c.JSON(http.StatusOK, gin.H{"task": task, "changes": diff})
}

// DELETE /tasks/:id
func (h *TaskHandler) Archive(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[task][archive] call by userID=%d role=%d id_param=%s", userID, roleID, c.Param("id"))

	id, ok := taskIDParam(c)
	if !ok {
		return
	}
	if err := h.service.Archive(c.Request.Context(), userID, isAdmin(c), id); err != nil {
		respondError(c, "[task][archive]", err)
		return
	}
	log.Printf("[task][archive][ok] id=%d", id)
	c.Status(http.StatusNoContent)
}
