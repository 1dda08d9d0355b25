package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	checkoutdomain "github.com/lumeven/funnel/internal/checkout/domain"
)

type createSessionRequest struct {
	Provider string `json:"provider"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"`
	BatchID  string `json:"batch_id"`
}

type createSessionResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
	ExpiresAt string `json:"expires_at"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	if !s.allowCheckout(c) {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.checkout.CreateSession(c.Request.Context(), checkoutdomain.SessionRequest{
		Provider: strings.TrimSpace(req.Provider),
		Email:    strings.TrimSpace(req.Email),
		Amount:   req.Amount,
		BatchID:  strings.TrimSpace(req.BatchID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, createSessionResponse{
		Success:   true,
		SessionID: session.ID,
		URL:       session.URL,
		ExpiresAt: session.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

type processPaymentRequest struct {
	PaymentMethod string `json:"payment_method"`
	Amount        int64  `json:"amount"`
	Token         string `json:"token"`
	Name          string `json:"nome"`
	Email         string `json:"email"`
	Phone         string `json:"telefone"`
	Document      string `json:"cpf"`
	BatchID       string `json:"batch_id"`
}

type processPaymentResponse struct {
	Success      bool   `json:"success"`
	PaymentID    string `json:"payment_id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail,omitempty"`
	QRCode       string `json:"qr_code,omitempty"`
	QRCodeText   string `json:"qr_code_text,omitempty"`
	ExpiresAt    string `json:"expires_at,omitempty"`
}

func (s *Server) ProcessPayment(c *gin.Context) {
	if !s.allowCheckout(c) {
		return
	}

	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.checkout.ProcessPayment(c.Request.Context(), checkoutdomain.PaymentRequest{
		Method:  req.PaymentMethod,
		Amount:  req.Amount,
		Token:   req.Token,
		BatchID: strings.TrimSpace(req.BatchID),
		Payer: checkoutdomain.Payer{
			Name:     strings.TrimSpace(req.Name),
			Email:    strings.TrimSpace(req.Email),
			Phone:    strings.TrimSpace(req.Phone),
			Document: strings.TrimSpace(req.Document),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := processPaymentResponse{
		Success:      true,
		PaymentID:    result.PaymentID,
		Status:       result.Status,
		StatusDetail: result.StatusDetail,
		QRCode:       result.QRCode,
		QRCodeText:   result.QRCodeText,
	}
	if result.ExpiresAt != nil {
		resp.ExpiresAt = result.ExpiresAt.Format("2006-01-02T15:04:05Z07:00")
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) PaymentStatus(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Query("payment_id"))
	if paymentID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.poller.Lookup(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) allowCheckout(c *gin.Context) bool {
	allowed, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		s.log.Warn("rate limiter unavailable, allowing request")
		return true
	}
	if !allowed {
		AbortWithError(c, ErrRateLimited)
		return false
	}
	return true
}
