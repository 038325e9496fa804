package ingest

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"granthalaya/internal/auth"
	"granthalaya/internal/events"
)

type Handler struct {
	Coordinator *Coordinator
	Manifests   *ManifestClient
	Hub         *events.Hub
	Log         *zap.Logger
}

func NewHandler(co *Coordinator, manifests *ManifestClient, hub *events.Hub, log *zap.Logger) *Handler {
	return &Handler{Coordinator: co, Manifests: manifests, Hub: hub, Log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/csv", h.ingestCSV)
	rg.POST("/folder", h.ingestFolder)
}

// ingestCSV accepts a multipart upload of exactly three CSV files (deck,
// grantha, image — identified by header, not name), stages them to disk and
// runs one ingestion transaction. Staged files are removed on every exit
// path once the transaction has been attempted.
func (h *Handler) ingestCSV(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	uploads := form.File["files"]
	if len(uploads) != 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly 3 CSV files required"})
		return
	}

	stageDir := filepath.Join(os.TempDir(), "granthalaya-upload-"+uuid.NewString())
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "staging failed"})
		return
	}
	defer os.RemoveAll(stageDir)

	names := make([]string, 0, len(uploads))
	files := make([][]byte, 0, len(uploads))
	for _, upload := range uploads {
		staged := filepath.Join(stageDir, filepath.Base(upload.Filename))
		if err := c.SaveUploadedFile(upload, staged); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "staging failed"})
			return
		}
		raw, err := os.ReadFile(staged)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "staging failed"})
			return
		}
		names = append(names, upload.Filename)
		files = append(files, raw)
	}

	batch, err := ParseBatch(names, files)
	if err != nil {
		h.respondError(c, err)
		return
	}

	claims := auth.MustGetClaims(c)
	if claims != nil {
		batch.Deck.UserID = claims.UserID
	}

	res, err := h.Coordinator.Ingest(c.Request.Context(), batch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.broadcast(res)
	c.JSON(http.StatusCreated, res)
}

type folderReq struct {
	CSVPath  string `json:"csv_path"`
	BasePath string `json:"base_path"`
}

// ingestFolder hands a pre-organized scan folder to the preprocessor service
// and ingests each deck of the returned manifest as its own transaction.
func (h *Handler) ingestFolder(c *gin.Context) {
	var req folderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.CSVPath) == "" || strings.TrimSpace(req.BasePath) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "csv_path and base_path required"})
		return
	}

	manifest, err := h.Manifests.Process(c.Request.Context(), req.CSVPath, req.BasePath)
	if err != nil {
		h.Log.Error("manifest preprocessing failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "folder preprocessing failed: " + err.Error()})
		return
	}

	userID := ""
	if claims := auth.MustGetClaims(c); claims != nil {
		userID = claims.UserID
	}

	var results []*Result
	for _, batch := range manifest.Batches(userID) {
		res, err := h.Coordinator.Ingest(c.Request.Context(), batch)
		if err != nil {
			h.Log.Error("folder batch failed",
				zap.String("deck_id", batch.Deck.ID),
				zap.Int("committed_decks", len(results)),
				zap.Error(err))
			h.respondError(c, err)
			return
		}
		results = append(results, res)
		h.broadcast(res)
	}

	c.JSON(http.StatusCreated, gin.H{"decks": results, "count": len(results)})
}

func (h *Handler) broadcast(res *Result) {
	if h.Hub == nil {
		return
	}
	go h.Hub.BroadcastJSON(events.CatalogEvent{
		Type:     events.DeckCreated,
		DeckID:   res.DeckID,
		Granthas: res.Granthas,
		Images:   res.Images,
		At:       time.Now().UTC(),
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  ve.Msg,
			"file":   ve.File,
			"row":    ve.Row,
			"column": ve.Column,
		})
	case errors.Is(err, ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrMissingRef):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.Log.Error("ingest failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
