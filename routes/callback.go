package routes

import (
	"net/http"

	"github.com/korrelate/ingestcore/internal/processing"
	"github.com/korrelate/ingestcore/internal/queue"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
)

// CallbackHandlers wraps CallbackReconciler behind /internal/callback. This
// route is mounted outside API-key middleware: the heavy worker authenticates
// the callback URL itself by construction (process-local, never exposed).
type CallbackHandlers struct {
	reconciler *processing.CallbackReconciler
	queue      *queue.ProcessingQueue
}

func NewCallbackHandlers(reconciler *processing.CallbackReconciler, q *queue.ProcessingQueue) *CallbackHandlers {
	return &CallbackHandlers{reconciler: reconciler, queue: q}
}

// Report handles POST /internal/callback, the other half of HeavyWorkerProtocol.
func (h *CallbackHandlers) Report(c *gin.Context) {
	var payload queue.CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.RespondWithBadRequest(c, "invalid callback payload", nil)
		return
	}

	var result *processing.CallbackResult
	if payload.Result != nil {
		result = &processing.CallbackResult{
			Markdown:   payload.Result.Markdown,
			PageCount:  payload.Result.PageCount,
			OCRApplied: payload.Result.OCRApplied,
		}
	}

	outcome, err := h.reconciler.Reconcile(c.Request.Context(), payload.DocumentID, payload.Success, result, payload.Error, payload.Profile)
	if err != nil {
		utils.RespondWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	}

	h.queue.Release(c.Request.Context(), payload.DocumentID)
	c.JSON(http.StatusOK, outcome)
}
