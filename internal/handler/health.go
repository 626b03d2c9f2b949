package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the service status and whether manual ingestion is available
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	ingestion := "disabled"
	if h.runner != nil && h.providerAPIKey != "" {
		ingestion = "enabled"
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "ingestion": ingestion})
}
