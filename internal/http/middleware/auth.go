package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"field-service/internal/auth"
	"field-service/internal/model"
)

const (
	shareClaimsContextKey = "shareClaims"
	actorContextKey       = "actor"
	userIDHeader          = "X-User-ID"
	userNameHeader        = "X-User-Name"
	tokenParam            = "token"
	defaultUserID         = "local-user"
	defaultUserName       = "Farmer"
)

// ShareToken validates the share token in the :token path segment and
// exposes its claims to the handler.
func ShareToken(parser *auth.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.Param(tokenParam))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "share token missing"})
			return
		}

		claims, err := parser.Parse(raw)
		if errors.Is(err, auth.ErrNoSecret) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "sharing is not configured"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired share link"})
			return
		}

		c.Set(shareClaimsContextKey, claims)
		c.Next()
	}
}

func MustShareClaims(c *gin.Context) (*auth.ShareClaims, bool) {
	value, exists := c.Get(shareClaimsContextKey)
	if !exists {
		return nil, false
	}

	claims, ok := value.(*auth.ShareClaims)
	if !ok {
		return nil, false
	}

	return claims, true
}

// Identify records who the client says is acting. Nothing is verified; the
// app has no accounts, so missing headers fall back to the single local user.
func Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := model.Actor{
			UserID:   strings.TrimSpace(c.GetHeader(userIDHeader)),
			UserName: strings.TrimSpace(c.GetHeader(userNameHeader)),
		}
		if actor.UserID == "" {
			actor.UserID = defaultUserID
		}
		if actor.UserName == "" {
			actor.UserName = defaultUserName
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func MustActor(c *gin.Context) model.Actor {
	if value, exists := c.Get(actorContextKey); exists {
		if actor, ok := value.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{UserID: defaultUserID, UserName: defaultUserName}
}
