package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
)

func (s *Server) registerProtocolRoutes() {
	g := s.engine.Group("/v1/protocol")
	g.Use(WalletRequired())

	g.POST("/initialize", s.initializeProtocol)
	g.GET("", s.getProtocol)
	g.POST("/pause", s.pauseProtocol)
	g.POST("/resume", s.resumeProtocol)
	g.POST("/fee", s.setProtocolFee)
	g.POST("/oracle/quote", s.putOracleQuote)
}

func (s *Server) initializeProtocol(c *gin.Context) {
	var req protocoldomain.InitializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.AuthorityWallet == "" {
		req.AuthorityWallet = callerWallet(c)
	}

	cfg, err := s.protocolSvc.Initialize(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cfg)
}

func (s *Server) getProtocol(c *gin.Context) {
	cfg, err := s.protocolSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) pauseProtocol(c *gin.Context) {
	if err := s.protocolSvc.Pause(c.Request.Context(), callerWallet(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_paused": true})
}

func (s *Server) resumeProtocol(c *gin.Context) {
	if err := s.protocolSvc.Resume(c.Request.Context(), callerWallet(c)); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"is_paused": false})
}

type setFeeRequest struct {
	FeeBps int64 `json:"fee_bps"`
}

func (s *Server) setProtocolFee(c *gin.Context) {
	var req setFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.protocolSvc.SetProtocolFee(c.Request.Context(), callerWallet(c), req.FeeBps); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fee_bps": req.FeeBps})
}

type putQuoteRequest struct {
	Feed        string    `json:"feed" binding:"required"`
	Price       int64     `json:"price" binding:"required"`
	Exponent    int32     `json:"exponent"`
	PublishedAt time.Time `json:"published_at" binding:"required"`
}

func (s *Server) putOracleQuote(c *gin.Context) {
	var req putQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.oracleSvc.Put(c.Request.Context(), req.Feed, req.Price, req.Exponent, req.PublishedAt); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feed": req.Feed})
}
