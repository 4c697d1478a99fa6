package routes

import (
	"net/http"
	"strings"

	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/store"
	"github.com/korrelate/ingestcore/internal/sync"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BindingHandlers implements RemoteFolderBinding CRUD plus on-demand sync,
// the HTTP-facing half of FolderSynchronizer (§4.11).
type BindingHandlers struct {
	store *store.Store
	sync  *sync.FolderSynchronizer
}

func NewBindingHandlers(st *store.Store, fs *sync.FolderSynchronizer) *BindingHandlers {
	return &BindingHandlers{store: st, sync: fs}
}

func (h *BindingHandlers) List(c *gin.Context) {
	bindings, err := h.store.ListBindings(c.Request.Context())
	if err != nil {
		utils.RespondWithInternalError(c, "failed to list bindings", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bindings": bindings})
}

func (h *BindingHandlers) Get(c *gin.Context) {
	b, err := h.store.GetBinding(c.Request.Context(), c.Param("id"))
	if err == store.ErrNotFound {
		utils.RespondWithNotFound(c, "binding not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load binding", nil)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BindingHandlers) Create(c *gin.Context) {
	var body model.RemoteFolderBinding
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithBadRequest(c, "invalid binding body", nil)
		return
	}
	body.ID = uuid.NewString()
	body.SyncStatus = model.SyncIdle
	body.Enabled = true
	if err := h.store.InsertBinding(c.Request.Context(), &body); err != nil {
		utils.RespondWithInternalError(c, "failed to create binding", nil)
		return
	}
	c.JSON(http.StatusCreated, body)
}

func (h *BindingHandlers) Delete(c *gin.Context) {
	if err := h.store.DeleteBinding(c.Request.Context(), c.Param("id")); err != nil {
		utils.RespondWithInternalError(c, "failed to delete binding", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sync handles POST /bindings/:id/sync, triggering an on-demand pass. A
// concurrent sync for the same binding is rejected with 409 rather than queued.
func (h *BindingHandlers) Sync(c *gin.Context) {
	result, err := h.sync.Sync(c.Request.Context(), c.Param("id"))
	if err != nil {
		if strings.Contains(err.Error(), "already in progress") {
			utils.RespondWithError(c, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
			return
		}
		utils.RespondWithInternalError(c, err.Error(), nil)
		return
	}
	c.JSON(http.StatusOK, result)
}
