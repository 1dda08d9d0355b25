package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetOrderData(c *gin.Context) {
	id := strings.TrimSpace(c.Query("payment_id"))
	if id == "" {
		id = strings.TrimSpace(c.Query("session_id"))
	}
	if id == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	data, err := s.ledger.OrderForThankYou(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

type completeRegistrationRequest struct {
	PaymentID string `json:"payment_id"`
	Birthdate string `json:"nascimento"`
}

func (s *Server) CompleteRegistration(c *gin.Context) {
	var req completeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	err := s.ledger.CompleteRegistration(c.Request.Context(), req.PaymentID, req.Birthdate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
