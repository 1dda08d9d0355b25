package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetSlots(c *gin.Context) {
	batchID := strings.TrimSpace(c.Param("batch_id"))

	remaining, err := s.slots.Get(c.Request.Context(), batchID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	batch, _ := s.slots.Batch(batchID)
	c.JSON(http.StatusOK, gin.H{
		"batch_id":  batch.ID,
		"remaining": remaining,
		"price":     batch.Price,
		"currency":  batch.Currency,
	})
}
