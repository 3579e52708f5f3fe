package stream

import (
	"github.com/gin-gonic/gin"

	"github.com/chapelcast/backend/pkg/response"
)

// Handler serves the read-only HTTP status surface.
type Handler struct {
	coord *Coordinator
}

// NewHandler creates the stream status handler.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

// GetStatus handles GET /stream/status.
func (h *Handler) GetStatus(c *gin.Context) {
	response.OK(c, h.coord.Status())
}

// GetViewerCount handles GET /stream/viewers.
func (h *Handler) GetViewerCount(c *gin.Context) {
	response.OK(c, gin.H{"count": h.coord.ViewerCount()})
}
