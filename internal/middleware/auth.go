package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/utils"
)

// Keys under which AuthMiddleware stores the caller on the gin context.
const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
	ctxClaims   = "claims"
)

var (
	errNoAuthHeader  = errors.New("Authorization header required")
	errBadAuthHeader = errors.New("Invalid authorization header format")
)

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errNoAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" || strings.Contains(token, " ") {
		return "", errBadAuthHeader
	}
	return token, nil
}

// AuthMiddleware admits requests carrying a session token signed with
// jwtSecret. The caller's id, application role and claims go on the gin
// context, and the raw token on the request context so backend table calls
// run as the caller.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWith(c, utils.Unauthorized, err.Error())
			return
		}
		claims, err := utils.ValidateToken(token, jwtSecret)
		if err != nil {
			abortWith(c, utils.Unauthorized, "Invalid token: "+err.Error())
			return
		}

		c.Set(ctxUserID, claims.UserID())
		c.Set(ctxUserRole, models.Role(claims.AppRole()))
		c.Set(ctxClaims, claims)
		c.Request = c.Request.WithContext(backend.WithAccessToken(c.Request.Context(), token))
		c.Next()
	}
}

// RoleAuthMiddleware admits callers whose role is one of allowed. It runs
// after AuthMiddleware.
func RoleAuthMiddleware(allowed ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetUserRoleFromContext(c)
		switch {
		case !ok:
			abortWith(c, utils.InternalServerError, "User role not found in context. AuthMiddleware might be missing.")
		case !lo.Contains(allowed, role):
			abortWith(c, utils.Forbidden, "You do not have permission to access this resource.")
		default:
			c.Next()
		}
	}
}

func abortWith(c *gin.Context, respond func(*gin.Context, string), message string) {
	respond(c, message)
	c.Abort()
}

func fromContext[T any](c *gin.Context, key string) (T, bool) {
	var zero T
	v, exists := c.Get(key)
	if !exists {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// GetUserIDFromContext returns the subject of the caller's token.
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	return fromContext[string](c, ctxUserID)
}

// GetUserRoleFromContext returns the caller's application role.
func GetUserRoleFromContext(c *gin.Context) (models.Role, bool) {
	return fromContext[models.Role](c, ctxUserRole)
}

// GetClaimsFromContext returns the validated token claims.
func GetClaimsFromContext(c *gin.Context) (*utils.Claims, bool) {
	return fromContext[*utils.Claims](c, ctxClaims)
}
