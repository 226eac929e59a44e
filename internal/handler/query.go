package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Neerajsainii/suitcase/internal/pipeline"
	"github.com/Neerajsainii/suitcase/internal/repository"
)

type QueryHandler struct {
	pipeline *pipeline.Pipeline
	logs     *repository.QueryLogRepository
}

func NewQueryHandler(p *pipeline.Pipeline, logs *repository.QueryLogRepository) *QueryHandler {
	return &QueryHandler{pipeline: p, logs: logs}
}

type QueryRequest struct {
	Query  string            `json:"query" binding:"required"`
	TopK   int               `json:"top_k"`
	Filter map[string]string `json:"filter"`
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TopK == 0 {
		req.TopK = 5
	}

	resp := h.pipeline.Query(c.Request.Context(), req.Query, req.TopK, req.Filter, uploaderIdentity(c))

	// The response is well-formed either way; a query failure is reported
	// in the body, not as a transport error.
	c.JSON(http.StatusOK, resp)
}

func (h *QueryHandler) ListLogs(c *gin.Context) {
	if h.logs == nil {
		c.JSON(http.StatusOK, gin.H{"data": []any{}})
		return
	}

	userID := c.Query("user_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, total, err := h.logs.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": logs,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}
