package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
)

func (s *Server) registerProviderRoutes() {
	g := s.engine.Group("/v1/providers")
	g.Use(WalletRequired())

	g.POST("", s.registerProvider)
	g.GET("/:wallet", s.getProvider)
	g.POST("/services", s.registerService)
	g.GET("/:wallet/services", s.listServices)
	g.PATCH("/services/:id/active", s.setServiceActive)
	g.GET("/certificates", s.listCertificates)
}

func (s *Server) registerProvider(c *gin.Context) {
	var req providerdomain.RegisterProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	p, err := s.providerSvc.RegisterProvider(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) getProvider(c *gin.Context) {
	p, err := s.providerSvc.GetProvider(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) registerService(c *gin.Context) {
	var req providerdomain.RegisterServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	svc, err := s.providerSvc.RegisterService(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (s *Server) listServices(c *gin.Context) {
	services, err := s.providerSvc.ListServices(c.Request.Context(), c.Param("wallet"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": services})
}

type setServiceActiveRequest struct {
	IsActive bool `json:"is_active"`
}

func (s *Server) setServiceActive(c *gin.Context) {
	serviceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req setServiceActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	svc, err := s.providerSvc.SetServiceActive(c.Request.Context(), providerdomain.SetServiceActiveRequest{
		Wallet:    callerWallet(c),
		ServiceID: serviceID,
		IsActive:  req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (s *Server) listCertificates(c *gin.Context) {
	certs, err := s.certificateSvc.ListByWallet(c.Request.Context(), callerWallet(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"certificates": certs})
}
