package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	balancedomain "github.com/sublyhq/subly/internal/balance/domain"
	oracledomain "github.com/sublyhq/subly/internal/oracle/domain"
	paymentdomain "github.com/sublyhq/subly/internal/payment/domain"
	protocoldomain "github.com/sublyhq/subly/internal/protocol/domain"
	providerdomain "github.com/sublyhq/subly/internal/provider/domain"
	subscriptiondomain "github.com/sublyhq/subly/internal/subscription/domain"
	vaultdomain "github.com/sublyhq/subly/internal/vault/domain"
	"github.com/sublyhq/subly/pkg/money"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}

	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, payload("unauthorized", err)
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, payload("validation_error", err)

	case errors.Is(err, protocoldomain.ErrUnauthorizedAuthority),
		errors.Is(err, subscriptiondomain.ErrNotSubscriptionOwner):
		return http.StatusForbidden, payload("authorization_error", err)

	case errors.Is(err, protocoldomain.ErrProtocolPaused):
		return http.StatusConflict, payload("protocol_paused", err)
	case errors.Is(err, protocoldomain.ErrAlreadyInitialized),
		errors.Is(err, providerdomain.ErrProviderAlreadyExists),
		errors.Is(err, subscriptiondomain.ErrAlreadySubscribed):
		return http.StatusConflict, payload("conflict", err)

	case errors.Is(err, protocoldomain.ErrNotInitialized),
		errors.Is(err, balancedomain.ErrAccountNotFound),
		errors.Is(err, balancedomain.ErrStakeAccountNotFound),
		errors.Is(err, providerdomain.ErrProviderNotFound),
		errors.Is(err, providerdomain.ErrServiceNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, vaultdomain.ErrAccountNotFound):
		return http.StatusNotFound, payload("not_found", err)

	case errors.Is(err, balancedomain.ErrInsufficientBalance),
		errors.Is(err, balancedomain.ErrInsufficientAvailableBalance),
		errors.Is(err, balancedomain.ErrInsufficientStakedFunds),
		errors.Is(err, balancedomain.ErrMinimumStakeNotMet),
		errors.Is(err, vaultdomain.ErrInsufficientVaultBalance):
		return http.StatusUnprocessableEntity, payload("balance_error", err)

	case errors.Is(err, subscriptiondomain.ErrSubscriptionNotActive),
		errors.Is(err, subscriptiondomain.ErrCannotSubscribeToOwn),
		errors.Is(err, subscriptiondomain.ErrSubscriberLimitReached),
		errors.Is(err, providerdomain.ErrServiceInactive),
		errors.Is(err, providerdomain.ErrProviderInactive),
		errors.Is(err, paymentdomain.ErrPaymentNotDue):
		return http.StatusUnprocessableEntity, payload("subscription_state_error", err)

	case errors.Is(err, oracledomain.ErrPriceNotAvailable),
		errors.Is(err, oracledomain.ErrInvalidPrice):
		return http.StatusServiceUnavailable, payload("price_error", err)

	case errors.Is(err, money.ErrOverflow),
		errors.Is(err, money.ErrUnderflow),
		errors.Is(err, money.ErrDivByZero):
		return http.StatusUnprocessableEntity, payload("arithmetic_error", err)

	case errors.Is(err, balancedomain.ErrInvalidAmount),
		errors.Is(err, vaultdomain.ErrInvalidAmount),
		errors.Is(err, providerdomain.ErrNameEmpty),
		errors.Is(err, providerdomain.ErrNameTooLong),
		errors.Is(err, providerdomain.ErrDescriptionTooLong),
		errors.Is(err, providerdomain.ErrURLTooLong),
		errors.Is(err, providerdomain.ErrInvalidFee),
		errors.Is(err, providerdomain.ErrInvalidBillingFrequency),
		errors.Is(err, providerdomain.ErrInvalidSubscriberCap),
		errors.Is(err, protocoldomain.ErrInvalidProtocolFee):
		return http.StatusBadRequest, payload("validation_error", err)

	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, payload("not_found", err)

	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func payload(typ string, err error) errorPayload {
	return errorPayload{Type: typ, Message: err.Error()}
}
