package routes

import (
	"net/http"
	"reflect"

	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/store"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProfileHandlers implements ConfigProfile CRUD (spec §4.13).
type ProfileHandlers struct {
	store *store.Store
}

func NewProfileHandlers(st *store.Store) *ProfileHandlers {
	return &ProfileHandlers{store: st}
}

func (h *ProfileHandlers) List(c *gin.Context) {
	profiles, err := h.store.ListProfiles(c.Request.Context())
	if err != nil {
		utils.RespondWithInternalError(c, "failed to list profiles", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (h *ProfileHandlers) Get(c *gin.Context) {
	p, err := h.store.GetProfile(c.Request.Context(), c.Param("id"))
	if err == store.ErrNotFound {
		utils.RespondWithNotFound(c, "profile not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load profile", nil)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Create handles POST /profiles. A profile created without explicit
// conversion/chunking/quality/embedding sections inherits DefaultProfile's.
// Promoting this profile to isDefault demotes whichever profile held that
// flag before, keeping "exactly one isDefault" (§4.13) true.
func (h *ProfileHandlers) Create(c *gin.Context) {
	var body model.ProcessingProfile
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithBadRequest(c, "invalid profile body", nil)
		return
	}
	body.ID = uuid.NewString()
	body.IsActive = true
	def := model.DefaultProfile()
	if reflect.ValueOf(body.Conversion).IsZero() {
		body.Conversion = def.Conversion
	}
	if reflect.ValueOf(body.Chunking).IsZero() {
		body.Chunking = def.Chunking
	}
	if reflect.ValueOf(body.Quality).IsZero() {
		body.Quality = def.Quality
	}
	if reflect.ValueOf(body.Embedding).IsZero() {
		body.Embedding = def.Embedding
	}
	if err := h.store.InsertProfile(c.Request.Context(), &body); err != nil {
		utils.RespondWithInternalError(c, "failed to create profile", nil)
		return
	}
	if body.IsDefault {
		if err := h.store.UnsetDefaultProfile(c.Request.Context(), body.ID); err != nil {
			utils.RespondWithInternalError(c, "failed to demote previous default profile", nil)
			return
		}
	}
	c.JSON(http.StatusCreated, body)
}

// Update handles PUT /profiles/:id, replacing the full record. An isDefault
// profile cannot be archived (§4.13); promoting another profile to isDefault
// demotes the one that held it.
func (h *ProfileHandlers) Update(c *gin.Context) {
	id := c.Param("id")
	var body model.ProcessingProfile
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondWithBadRequest(c, "invalid profile body", nil)
		return
	}

	existing, err := h.store.GetProfile(c.Request.Context(), id)
	if err == store.ErrNotFound {
		utils.RespondWithNotFound(c, "profile not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load profile", nil)
		return
	}
	if existing.IsDefault && body.IsArchived {
		utils.RespondWithError(c, http.StatusConflict, "DEFAULT_PROFILE_IMMUTABLE", "the default profile cannot be archived", nil)
		return
	}

	body.ID = id
	if err := h.store.ReplaceProfile(c.Request.Context(), &body); err != nil {
		utils.RespondWithInternalError(c, "failed to update profile", nil)
		return
	}
	if body.IsDefault {
		if err := h.store.UnsetDefaultProfile(c.Request.Context(), body.ID); err != nil {
			utils.RespondWithInternalError(c, "failed to demote previous default profile", nil)
			return
		}
	}
	c.JSON(http.StatusOK, body)
}

// Delete handles DELETE /profiles/:id. The default profile can never be
// deleted (§4.13). A profile still referenced by any Document requires an
// explicit confirm=true retry (the two-step confirmation §4.13 mandates)
// before the delete is allowed to proceed.
func (h *ProfileHandlers) Delete(c *gin.Context) {
	id := c.Param("id")

	existing, err := h.store.GetProfile(c.Request.Context(), id)
	if err == store.ErrNotFound {
		utils.RespondWithNotFound(c, "profile not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load profile", nil)
		return
	}
	if existing.IsDefault {
		utils.RespondWithError(c, http.StatusConflict, "DEFAULT_PROFILE_IMMUTABLE", "the default profile cannot be deleted", nil)
		return
	}

	count, err := h.store.CountDocumentsByProfile(c.Request.Context(), id)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to check profile usage", nil)
		return
	}
	if count > 0 && c.Query("confirm") != "true" {
		utils.RespondWithError(c, http.StatusConflict, "PROFILE_IN_USE", "profile is referenced by existing documents; retry with ?confirm=true to delete anyway", gin.H{"documentCount": count})
		return
	}
	if err := h.store.DeleteProfile(c.Request.Context(), id); err != nil {
		utils.RespondWithInternalError(c, "failed to delete profile", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
