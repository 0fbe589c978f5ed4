package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
)

func (s *Server) registerBalanceRoutes() {
	g := s.engine.Group("/v1")
	g.Use(WalletRequired())

	g.POST("/deposit", s.deposit)
	g.POST("/withdraw", s.withdraw)
	g.GET("/balance", s.getBalance)
	g.POST("/stake", s.stake)
	g.POST("/unstake", s.unstake)
	g.GET("/stake", s.getStake)
}

func (s *Server) deposit(c *gin.Context) {
	var req balancedomain.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	account, err := s.balanceSvc.Deposit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) withdraw(c *gin.Context) {
	var req balancedomain.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	account, err := s.balanceSvc.Withdraw(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) getBalance(c *gin.Context) {
	account, err := s.balanceSvc.Get(c.Request.Context(), callerWallet(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) stake(c *gin.Context) {
	var req balancedomain.StakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	stake, err := s.balanceSvc.Stake(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stake)
}

func (s *Server) unstake(c *gin.Context) {
	var req balancedomain.UnstakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Wallet = callerWallet(c)

	stake, err := s.balanceSvc.Unstake(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stake)
}

func (s *Server) getStake(c *gin.Context) {
	stake, err := s.balanceSvc.GetStake(c.Request.Context(), callerWallet(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stake)
}
