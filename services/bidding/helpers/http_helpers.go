package helpers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	var writeErr *biddingerrors.WriteError

	switch {
	case errors.Is(err, biddingerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, biddingerrors.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, biddingerrors.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, biddingerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, biddingerrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return http.StatusBadRequest, "invalid bid details"
	case errors.Is(err, biddingerrors.ErrInvalidAuction):
		return http.StatusBadRequest, "invalid auction details"
	case errors.Is(err, biddingerrors.ErrInvalidProduct):
		return http.StatusBadRequest, "invalid product details"
	case errors.Is(err, biddingerrors.ErrInvalidUser):
		return http.StatusBadRequest, "invalid user details"
	case errors.Is(err, biddingerrors.ErrInvalidFilter):
		return http.StatusBadRequest, "invalid filter"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return http.StatusConflict, "bid amount too low"
	case errors.Is(err, biddingerrors.ErrBidNotAllowed):
		return http.StatusConflict, "auction is not accepting bids"
	case errors.Is(err, biddingerrors.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid state transition"
	case errors.Is(err, biddingerrors.ErrProductSold):
		return http.StatusConflict, "product already sold"
	case errors.Is(err, biddingerrors.ErrProductListed):
		return http.StatusConflict, "product already has an open auction"
	case errors.Is(err, biddingerrors.ErrDuplicate):
		return http.StatusConflict, "already exists"
	case errors.Is(err, biddingerrors.ErrStillReferenced):
		return http.StatusConflict, "still referenced by other records"
	case errors.As(err, &writeErr) && writeErr.Detail != "":
		return http.StatusBadRequest, "write failed: " + writeErr.Detail
	case errors.Is(err, biddingerrors.ErrWriteFailed):
		return http.StatusBadRequest, "write failed"
	case errors.Is(err, biddingerrors.ErrNoBids):
		return http.StatusOK, "no bids found"
	case errors.Is(err, biddingerrors.ErrNoAuctions):
		return http.StatusOK, "no auctions found"
	case errors.Is(err, biddingerrors.ErrNoProducts):
		return http.StatusOK, "no products found"
	case errors.Is(err, biddingerrors.ErrNoUsers):
		return http.StatusOK, "no users found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondError writes the mapped error envelope, attaching the rejection payload for refused bids
func RespondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := MapErrorToHTTP(err)

	var rejection *biddingerrors.BidRejection
	if errors.As(err, &rejection) {
		utils.JSONErrorDetails(c, status, fmt.Errorf("%s: %w", message, err), message, rejection.Details())
	} else {
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	}

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["status"] = status
	fields["error"] = err.Error()
	if status >= http.StatusInternalServerError {
		utils.Error(handlerName+": request failed", fields)
	} else {
		utils.Warn(handlerName+": request rejected", fields)
	}
}

// IsEmptyResult reports whether err only says a listing matched nothing
func IsEmptyResult(err error) bool {
	return errors.Is(err, biddingerrors.ErrNoBids) ||
		errors.Is(err, biddingerrors.ErrNoAuctions) ||
		errors.Is(err, biddingerrors.ErrNoProducts) ||
		errors.Is(err, biddingerrors.ErrNoUsers)
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
