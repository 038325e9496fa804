package report

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	Generator *Generator
	Log       *zap.Logger
}

func NewHandler(gen *Generator, log *zap.Logger) *Handler {
	return &Handler{Generator: gen, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/decks", h.get)
	rg.POST("/decks", h.post)
}

func (h *Handler) get(c *gin.Context) {
	opts := Options{
		TimeRange:         c.Query("range"),
		IncludeGranthas:   c.Query("include_granthas") != "false",
		IncludeDimensions: c.Query("include_dimensions") == "true",
		IncludeOwners:     c.Query("include_owners") == "true",
	}
	h.respond(c, opts)
}

func (h *Handler) post(c *gin.Context) {
	var opts Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	h.respond(c, opts)
}

func (h *Handler) respond(c *gin.Context, opts Options) {
	if !ValidRange(opts.TimeRange) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "range must be one of week, month, year, all"})
		return
	}

	pdf, err := h.Generator.Generate(c.Request.Context(), opts)
	if err != nil {
		h.Log.Error("report generation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="collection-report.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
