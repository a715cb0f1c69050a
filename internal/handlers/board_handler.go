package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskboard/internal/models"
	"taskboard/internal/services"
)

type BoardHandler struct {
	service services.BoardService
}

func NewBoardHandler(service services.BoardService) *BoardHandler {
	return &BoardHandler{service: service}
}

// GET /board
func (h *BoardHandler) GetBoard(c *gin.Context) {
	userID, roleID := getUserAndRole(c)
	log.Printf("[board][get] call by userID=%d role=%d", userID, roleID)

	payload, err := h.service.Board(c.Request.Context(), userID, isAdmin(c))
	if err != nil {
		respondError(c, "[board][get]", err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", payload)
}

// POST /groups
func (h *BoardHandler) CreateGroup(c *gin.Context) {
	userID, _ := getUserAndRole(c)

	var req struct {
		Title string `json:"title" binding:"required"`
		Color string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[group][create][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	group, err := h.service.CreateGroup(c.Request.Context(), userID, req.Title, req.Color)
	if err != nil {
		respondError(c, "[group][create]", err)
		return
	}
	log.Printf("[group][create][ok] id=%d user=%d position=%d", group.ID, userID, group.Position)
	c.JSON(http.StatusCreated, group)
}

// GET /groups
func (h *BoardHandler) ListGroups(c *gin.Context) {
	userID, _ := getUserAndRole(c)
	groups, err := h.service.ListGroups(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "[group][list]", err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// POST /groups/reorder
func (h *BoardHandler) ReorderGroups(c *gin.Context) {
	userID, _ := getUserAndRole(c)

	var req struct {
		Groups []models.GroupPosition `json:"groups" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[group][reorder][bind][err] %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.ReorderGroups(c.Request.Context(), userID, req.Groups); err != nil {
		respondError(c, "[group][reorder]", err)
		return
	}
	log.Printf("[group][reorder][ok] user=%d count=%d", userID, len(req.Groups))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
