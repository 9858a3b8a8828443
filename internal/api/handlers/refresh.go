package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/tix-calc/internal/services"
)

// RefreshQueue queues background cache refreshes
type RefreshQueue interface {
	QueueRefresh(name string) (int, error)
	Status() services.RefreshStatus
}

type RefreshHandler struct {
	queue RefreshQueue
}

func NewRefreshHandler(queue RefreshQueue) *RefreshHandler {
	return &RefreshHandler{queue: queue}
}

// RefreshRequest is the POST body of /api/refresh
type RefreshRequest struct {
	Name string `json:"name"`
}

// GetStatus returns the refresher's stats for today
func (h *RefreshHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.queue.Status())
}

// QueueRefresh asks for a card's price history to be refetched on the
// next refresh run
func (h *RefreshHandler) QueueRefresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	position, err := h.queue.QueueRefresh(req.Name)
	if err != nil {
		if errors.Is(err, services.ErrNotRefreshable) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"name":     req.Name,
		"position": position,
	})
}
