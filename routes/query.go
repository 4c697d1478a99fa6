package routes

import (
	"net/http"

	"github.com/korrelate/ingestcore/internal/search"
	"github.com/korrelate/ingestcore/utils"

	"github.com/gin-gonic/gin"
)

// SearchHandlers wraps HybridSearch behind POST /search.
type SearchHandlers struct {
	hybrid *search.HybridSearch
}

func NewSearchHandlers(hybrid *search.HybridSearch) *SearchHandlers {
	return &SearchHandlers{hybrid: hybrid}
}

type searchFilter struct {
	DocumentID string `json:"documentId"`
}

type searchRequest struct {
	QueryText string       `json:"queryText" binding:"required"`
	TopK      int          `json:"topK"`
	Mode      string       `json:"mode"`
	Alpha     float64      `json:"alpha"`
	Filter    searchFilter `json:"filter"`
}

// Search handles POST /search. mode defaults to "hybrid"; topK defaults to 5
// inside HybridSearch itself when omitted.
func (h *SearchHandlers) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithBadRequest(c, "queryText is required", nil)
		return
	}
	if req.Mode == "" {
		req.Mode = "hybrid"
	}
	if req.Mode != "dense" && req.Mode != "hybrid" {
		utils.RespondWithBadRequest(c, "mode must be \"dense\" or \"hybrid\"", nil)
		return
	}

	results, err := h.hybrid.Search(c.Request.Context(), search.Query{
		Text:       req.QueryText,
		TopK:       req.TopK,
		Mode:       req.Mode,
		Alpha:      req.Alpha,
		DocumentID: req.Filter.DocumentID,
	})
	if err != nil {
		utils.RespondWithInternalError(c, "search failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
