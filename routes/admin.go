package routes

import (
	"net/http"

	"github.com/korrelate/ingestcore/internal/queue"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandlers exposes operational introspection: queue depth by state.
type AdminHandlers struct {
	queue *queue.ProcessingQueue
}

func NewAdminHandlers(q *queue.ProcessingQueue) *AdminHandlers {
	return &AdminHandlers{queue: q}
}

// QueueStats handles GET /admin/queue-stats.
func (h *AdminHandlers) QueueStats(c *gin.Context) {
	counts, err := h.queue.Counts()
	if err != nil {
		utils.RespondWithInternalError(c, "failed to read queue stats", nil)
		return
	}
	c.JSON(http.StatusOK, counts)
}
