package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Neerajsainii/suitcase/internal/config"
	"github.com/Neerajsainii/suitcase/internal/pipeline"
	"github.com/Neerajsainii/suitcase/internal/repository"
)

type DocumentHandler struct {
	pipeline *pipeline.Pipeline
	queue    *pipeline.Queue
	docs     *repository.DocumentRepository
	chunks   *repository.ChunkRepository
	cfg      *config.Config
}

func NewDocumentHandler(p *pipeline.Pipeline, q *pipeline.Queue, docs *repository.DocumentRepository, chunks *repository.ChunkRepository, cfg *config.Config) *DocumentHandler {
	return &DocumentHandler{pipeline: p, queue: q, docs: docs, chunks: chunks, cfg: cfg}
}

// Upload accepts a multipart file, stores the blob, creates the document in
// status uploaded and enqueues background processing.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()

	if h.cfg.MaxUploadSize > 0 && header.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file exceeds upload limit"})
		return
	}

	title := c.PostForm("title")
	owner := uploaderIdentity(c)

	doc, err := h.pipeline.SubmitDocument(
		c.Request.Context(),
		owner,
		title,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	enqueued := h.queue.Enqueue(doc.ID)
	c.JSON(http.StatusCreated, gin.H{
		"document": doc,
		"queued":   enqueued,
	})
}

func (h *DocumentHandler) List(c *gin.Context) {
	status := c.Query("status")
	uploadedBy := c.Query("uploaded_by")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, total, err := h.docs.List(c.Request.Context(), uploadedBy, status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": docs,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	doc, err := h.docs.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.pipeline.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// Process triggers a synchronous ingestion run.
func (h *DocumentHandler) Process(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.pipeline.Process(c.Request.Context(), id); err != nil {
		respondProcessError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"processed": id})
}

// Reprocess clears a document's chunks and index entries and runs ingestion
// again.
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.pipeline.Reprocess(c.Request.Context(), id); err != nil {
		respondProcessError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reprocessed": id})
}

func (h *DocumentHandler) ListChunks(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	chunks, total, err := h.chunks.FindByDocumentID(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": chunks,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return uuid.Nil, false
	}
	return id, true
}

func respondProcessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, pipeline.ErrAlreadyProcessing), errors.Is(err, pipeline.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// uploaderIdentity tags the document owner. Authentication lives outside
// this service; the identity is treated as an opaque string.
func uploaderIdentity(c *gin.Context) string {
	if user := c.GetHeader("X-User"); user != "" {
		return user
	}
	if user := c.PostForm("uploaded_by"); user != "" {
		return user
	}
	return "anonymous"
}
