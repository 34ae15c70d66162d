package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/gin-gonic/gin"
)

// ContextKeyClaims is the Gin context key for JWT claims.
const ContextKeyClaims = "claims"

var errNoToken = errors.New("authorization header or token query required")

// tokenSource extracts a raw token from the request.
type tokenSource func(c *gin.Context) string

// bearerOrQuery reads the Authorization header and falls back to ?token=,
// which EventSource clients need since they cannot send headers.
func bearerOrQuery(c *gin.Context) string {
	if scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// queryOnly reads ?token=. Browsers cannot set headers on WebSocket upgrades.
func queryOnly(c *gin.Context) string {
	return c.Query("token")
}

// authenticate validates the token from src and, when studentOnly is set,
// rejects staff tokens.
func authenticate(authService *service.AuthService, src tokenSource, studentOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := claimsFrom(c, authService, src)
		if errors.Is(err, errNoToken) {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}

		if studentOnly && claims.Role != service.RoleStudent {
			response.AbortFail(c, http.StatusForbidden, response.ErrStudentAccessOnly)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireJWT validates a bearer token for any role.
func RequireJWT(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, bearerOrQuery, false)
}

// RequireStudentJWT validates a student JWT.
func RequireStudentJWT(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, bearerOrQuery, true)
}

// RequireStudentWSAuth validates a student JWT from the query param ?token=...
// Used for WebSocket upgrade requests.
func RequireStudentWSAuth(authService *service.AuthService) gin.HandlerFunc {
	return authenticate(authService, queryOnly, true)
}

// GetClaims retrieves the JWT claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func claimsFrom(c *gin.Context, authService *service.AuthService, src tokenSource) (*service.Claims, error) {
	tokenStr := src(c)
	if tokenStr == "" {
		return nil, errNoToken
	}
	return authService.ValidateToken(tokenStr)
}
