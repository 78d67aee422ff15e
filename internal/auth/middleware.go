package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie carrying the ambient session token for
// browser clients. Background uploaders send a bearer header instead.
const SessionCookie = "session"

// Require enforces a valid token (bearer header preferred, session cookie
// fallback) carrying one of the given roles.
func Require(signingKey, issuer string, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			if cookie, err := c.Cookie(SessionCookie); err == nil {
				tokenStr = cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": accessMessage(roles)})
			return
		}
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": accessMessage(roles)})
			return
		}
		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": accessMessage(roles)})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

// UserID returns the authenticated subject, or "" when unauthenticated.
func UserID(c *gin.Context) string {
	claimsAny, ok := c.Get("claims")
	if !ok {
		return ""
	}
	claims, _ := claimsAny.(Claims)
	return claims.Subject
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}

func hasRole(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}

func accessMessage(roles []string) string {
	if len(roles) == 1 && roles[0] == "admin" {
		return "Admin access required"
	}
	return "Employee access required"
}
