// Package routes wires the HTTP surface in spec §6.1 onto the collaborators
// in internal/: upload, listing, search, the heavy-lane callback, profile
// and binding CRUD, and admin queue stats.
package routes

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/korrelate/ingestcore/internal/events"
	"github.com/korrelate/ingestcore/internal/ingest"
	"github.com/korrelate/ingestcore/internal/model"
	"github.com/korrelate/ingestcore/internal/processing"
	"github.com/korrelate/ingestcore/internal/profile"
	"github.com/korrelate/ingestcore/internal/store"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DocumentHandlers groups the collaborators behind /documents.
type DocumentHandlers struct {
	store     *store.Store
	dedup     *ingest.DedupStore
	resolver  *profile.Resolver
	dispatch  *processing.Dispatcher
	bus       *events.Bus
	uploadDir string
}

func NewDocumentHandlers(st *store.Store, dedup *ingest.DedupStore, resolver *profile.Resolver, dispatch *processing.Dispatcher, bus *events.Bus, uploadDir string) *DocumentHandlers {
	return &DocumentHandlers{store: st, dedup: dedup, resolver: resolver, dispatch: dispatch, bus: bus, uploadDir: uploadDir}
}

// Upload handles POST /documents: multipart file upload, dedup by content
// hash, format routing, then dispatch to the fast or heavy lane.
func (h *DocumentHandlers) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		utils.RespondWithBadRequest(c, "file is required", nil)
		return
	}
	profileID := c.PostForm("profileId")

	src, err := fileHeader.Open()
	if err != nil {
		utils.RespondWithInternalError(c, "failed to open upload", nil)
		return
	}
	defer src.Close()

	sniff := make([]byte, 512)
	n, _ := io.ReadFull(src, sniff)
	sniff = sniff[:n]
	mimeType := ingest.DetectFromContent(sniff, fileHeader.Header.Get("Content-Type"))

	hash, existing, err := h.dedup.HashAndLookup(c.Request.Context(), io.MultiReader(bytes.NewReader(sniff), src))
	if err != nil {
		utils.RespondWithInternalError(c, "failed to hash upload", nil)
		return
	}
	if existing != nil {
		utils.RespondWithError(c, http.StatusConflict, "DUPLICATE_FILE", "a document with identical content already exists", gin.H{"existingId": existing.ID})
		return
	}

	prof, err := h.resolver.Resolve(c.Request.Context(), "", profileID, "")
	if err != nil {
		utils.RespondWithInternalError(c, "failed to resolve processing profile", nil)
		return
	}

	route, err := ingest.Route(fileHeader.Filename, mimeType, fileHeader.Size, prof.Conversion.MaxFileSizeMb)
	if err != nil {
		if routeErr, ok := err.(*ingest.RouterError); ok && routeErr.Code == "FileTooLarge" {
			utils.RespondWithError(c, http.StatusBadRequest, "FILE_TOO_LARGE", routeErr.Message, nil)
			return
		}
		utils.RespondWithError(c, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), nil)
		return
	}

	name, err := utils.GenerateSecureRandomString(16)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to generate storage name", nil)
		return
	}
	localPath := filepath.Join(h.uploadDir, name+filepath.Ext(fileHeader.Filename))
	if err := c.SaveUploadedFile(fileHeader, localPath); err != nil {
		utils.RespondWithInternalError(c, "failed to store upload", nil)
		return
	}

	now := timeNow()
	doc := &model.Document{
		ID:              uuid.NewString(),
		Filename:        fileHeader.Filename,
		MimeType:        mimeType,
		FileSize:        fileHeader.Size,
		Format:          route.Format,
		FormatCategory:  route.Category,
		Status:          model.StatusPending,
		MD5Hash:         hash,
		FilePath:        localPath,
		IsActive:        true,
		SourceType:      model.SourceManual,
		ConnectionState: model.ConnectionStandalone,
		ProfileID:       profileID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.InsertDocument(c.Request.Context(), doc); err != nil {
		utils.RespondWithError(c, http.StatusConflict, "STATE_CONFLICT", "failed to create document", nil)
		return
	}
	h.bus.Emit(model.EventDocumentCreated, gin.H{"documentId": doc.ID, "sourceType": doc.SourceType})

	content, err := readUploaded(localPath)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to read stored upload", nil)
		return
	}
	if err := h.dispatch.Dispatch(c.Request.Context(), doc, content, route.Lane, prof); err != nil {
		utils.RespondWithError(c, http.StatusAccepted, "ENQUEUE_FAILED", err.Error(), gin.H{"documentId": doc.ID})
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// Get handles GET /documents/:id.
func (h *DocumentHandlers) Get(c *gin.Context) {
	doc, err := h.store.GetDocument(c.Request.Context(), c.Param("id"))
	if err == store.ErrNotFound {
		utils.RespondWithNotFound(c, "document not found")
		return
	}
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load document", nil)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// List handles GET /documents with status/search/pagination filters.
func (h *DocumentHandlers) List(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	f := store.DocumentFilter{
		Status:          c.Query("status"),
		Search:          c.Query("search"),
		SourceType:      c.Query("sourceType"),
		ConnectionState: c.Query("connectionState"),
		SortBy:          c.Query("sortBy"),
		Limit:           limit,
		Offset:          offset,
	}
	docs, total, err := h.store.ListDocuments(c.Request.Context(), f)
	if err != nil {
		utils.RespondWithInternalError(c, "failed to list documents", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": total})
}

// Chunks handles GET /documents/:id/chunks.
func (h *DocumentHandlers) Chunks(c *gin.Context) {
	chunks, err := h.store.ChunksByDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondWithInternalError(c, "failed to load chunks", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chunks": chunks})
}
