package catalog

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"granthalaya/internal/events"
)

type Handler struct {
	Repo *Repo
	Hub  *events.Hub
	Log  *zap.Logger
}

func NewHandler(repo *Repo, hub *events.Hub, log *zap.Logger) *Handler {
	return &Handler{Repo: repo, Hub: hub, Log: log}
}

// RegisterRoutes mounts read routes on public and mutating routes on
// protected.
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/decks", h.listDecks)
	public.GET("/decks/:id", h.getDeck)
	public.GET("/granthas/:id", h.getGrantha)
	public.GET("/authors", h.listAuthors)
	public.GET("/languages", h.listLanguages)

	protected.PUT("/decks/:id", h.updateDeck)
	protected.DELETE("/decks/:id", h.deleteDeck)
	protected.PUT("/granthas/:id", h.updateGrantha)
	protected.DELETE("/granthas/:id", h.deleteGrantha)
	protected.PUT("/authors/:id", h.updateAuthor)
}

func (h *Handler) listDecks(c *gin.Context) {
	q := ListQuery{
		Q:          c.Query("q"),
		StitchType: c.Query("stitch_type"),
		Condition:  c.Query("condition"),
		Limit:      parseInt(c.Query("limit"), 20),
		Offset:     parseInt(c.Query("offset"), 0),
	}

	total, err := h.Repo.Count(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count failed"})
		return
	}

	items, err := h.Repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getDeck(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	d, err := h.Repo.GetDeckTree(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if d == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) getGrantha(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	g, err := h.Repo.GetGrantha(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if g == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) updateDeck(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var upd DeckUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	ok, err := h.Repo.UpdateDeck(c.Request.Context(), id, upd)
	if err != nil {
		h.Log.Error("update deck failed", zap.String("deck_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	d, err := h.Repo.GetDeck(c.Request.Context(), id)
	if err != nil || d == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) deleteDeck(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ok, err := h.Repo.DeleteDeck(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	if h.Hub != nil {
		go h.Hub.BroadcastJSON(events.CatalogEvent{
			Type:   events.DeckDeleted,
			DeckID: id,
			At:     time.Now().UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) updateGrantha(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var upd GranthaUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ok, err := h.Repo.UpdateGrantha(c.Request.Context(), id, upd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	g, err := h.Repo.GetGrantha(c.Request.Context(), id)
	if err != nil || g == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}

	if h.Hub != nil {
		go h.Hub.BroadcastJSON(events.CatalogEvent{
			Type:      events.GranthaUpdated,
			DeckID:    g.DeckID,
			GranthaID: g.ID,
			At:        time.Now().UTC(),
		})
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) deleteGrantha(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	ok, err := h.Repo.DeleteGrantha(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) updateAuthor(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var upd AuthorUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be empty"})
		return
	}

	ok, err := h.Repo.UpdateAuthor(c.Request.Context(), id, upd)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h *Handler) listAuthors(c *gin.Context) {
	authors, err := h.Repo.ListAuthors(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": authors, "count": len(authors)})
}

func (h *Handler) listLanguages(c *gin.Context) {
	languages, err := h.Repo.ListLanguages(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": languages, "count": len(languages)})
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
