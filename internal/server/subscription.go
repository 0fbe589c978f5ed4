package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
)

func (s *Server) registerSubscriptionRoutes() {
	g := s.engine.Group("/v1/subscriptions")
	g.Use(WalletRequired())

	g.POST("", s.subscribe)
	g.GET("", s.listSubscriptions)
	g.GET("/:id", s.getSubscription)
	g.DELETE("/:id", s.unsubscribe)
}

func (s *Server) subscribe(c *gin.Context) {
	var req subscriptiondomain.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	sub, err := s.subscriptionSvc.Subscribe(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) listSubscriptions(c *gin.Context) {
	subs, err := s.subscriptionSvc.ListByWallet(c.Request.Context(), callerWallet(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

func (s *Server) getSubscription(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if sub.Wallet != callerWallet(c) {
		AbortWithError(c, subscriptiondomain.ErrNotSubscriptionOwner)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) unsubscribe(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	sub, err := s.subscriptionSvc.Unsubscribe(c.Request.Context(), subscriptiondomain.UnsubscribeRequest{
		Wallet:         callerWallet(c),
		SubscriptionID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
