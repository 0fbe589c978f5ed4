package server

import (
	"net/http"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
)

func (s *Server) registerPaymentRoutes() {
	g := s.engine.Group("/v1/payments")
	g.Use(WalletRequired())

	g.POST("/execute", s.executePayment)
	g.GET("", s.listPayments)
	g.GET("/subscription/:id", s.listSubscriptionPayments)
}

type executePaymentRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

// Settlement is driven by the batch scheduler; the manual trigger is
// reserved for the protocol authority.
func (s *Server) executePayment(c *gin.Context) {
	cfg, err := s.protocolSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cfg.AuthorityWallet != callerWallet(c) {
		AbortWithError(c, protocoldomain.ErrUnauthorizedAuthority)
		return
	}

	var req executePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	id, err := snowflake.ParseString(req.SubscriptionID)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	record, err := s.paymentSvc.ExecutePayment(c.Request.Context(), paymentdomain.ExecuteRequest{SubscriptionID: id})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) listPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.paymentSvc.ListByWallet(c.Request.Context(), callerWallet(c), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": records})
}

func (s *Server) listSubscriptionPayments(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	records, err := s.paymentSvc.ListBySubscription(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": records})
}
