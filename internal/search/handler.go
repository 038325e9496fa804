package search

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Resolver *Resolver
	Log      *zap.Logger
}

func NewHandler(resolver *Resolver, log *zap.Logger) *Handler {
	return &Handler{Resolver: resolver, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.search)
	rg.GET("/manual", h.manual)
}

type searchReq struct {
	Query string `json:"query"`
}

// search never returns a non-200 for resolution problems: tier failures end
// in the fallback result set with the error attached.
func (h *Handler) search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query required"})
		return
	}

	resp := h.Resolver.Resolve(c.Request.Context(), req.Query)
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) manual(c *gin.Context) {
	params := ManualParams{
		Name:       c.Query("name"),
		Owner:      c.Query("owner"),
		Author:     c.Query("author"),
		Language:   c.Query("language"),
		Condition:  c.Query("condition"),
		StitchType: c.Query("stitch_type"),
		MinLength:  c.Query("min_length"),
		MaxLength:  c.Query("max_length"),
		MinWidth:   c.Query("min_width"),
		MaxWidth:   c.Query("max_width"),
		Operator:   c.Query("operator"),
	}

	resp, err := h.Resolver.ManualSearch(c.Request.Context(), params)
	if err != nil {
		h.Log.Error("manual search failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	resp.Query = c.Request.URL.RawQuery
	c.JSON(http.StatusOK, resp)
}
