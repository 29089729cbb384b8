package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/utils"
)

const identityKey = "auth.identity"

// AuthRequired rejects requests without a valid bearer token and stores the caller's identity
func AuthRequired(j JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := bearerToken(c.GetHeader("Authorization"))
		if tok == "" {
			abort(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "missing bearer token")
			return
		}
		claims, err := j.Verify(tok)
		if err != nil {
			utils.Warn("Rejected token", map[string]any{"path": c.Request.URL.Path, "error": err.Error()})
			abort(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "invalid token")
			return
		}
		c.Set(identityKey, claims.Identity())
		c.Next()
	}
}

// AdminRequired must run after AuthRequired
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentUser(c)
		if !ok {
			abort(c, http.StatusUnauthorized, biddingerrors.ErrUnauthorized, "unauthorized")
			return
		}
		if !id.IsAdmin {
			abort(c, http.StatusForbidden, biddingerrors.ErrForbidden, "admin privileges required")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the identity stored by AuthRequired
func CurrentUser(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// SetCurrentUser stores id on the request, for handlers mounted without AuthRequired in tests
func SetCurrentUser(c *gin.Context, id models.Identity) {
	c.Set(identityKey, id)
}

func abort(c *gin.Context, status int, err error, message string) {
	utils.JSONError(c, status, fmt.Errorf("%w: %s", err, message), message)
	c.Abort()
}

func bearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
