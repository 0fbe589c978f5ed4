package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderWallet carries the caller's wallet identity. Signature
	// verification happens at the edge gateway; this service trusts
	// the header.
	HeaderWallet = "X-Wallet"

	contextWalletKey = "wallet"
)

// WalletRequired rejects requests without a caller identity.
func WalletRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := strings.TrimSpace(c.GetHeader(HeaderWallet))
		if wallet == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Set(contextWalletKey, wallet)
		c.Next()
	}
}

func callerWallet(c *gin.Context) string {
	return c.GetString(contextWalletKey)
}
