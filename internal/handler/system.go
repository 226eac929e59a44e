package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Neerajsainii/suitcase/internal/pipeline"
)

type SystemHandler struct {
	pipeline *pipeline.Pipeline
}

func NewSystemHandler(p *pipeline.Pipeline) *SystemHandler {
	return &SystemHandler{pipeline: p}
}

func (h *SystemHandler) Info(c *gin.Context) {
	info, err := h.pipeline.SystemInfo(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, info)
}
