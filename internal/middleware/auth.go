// Package middleware resolves the caller identity from bearer tokens issued by
// the platform's auth service.
package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

const (
	ctxUserID = "userID"
	ctxRole   = "userRole"
)

// Roles carried in the "role" claim.
const (
	RoleStudent     = "student"
	RoleCoordinator = "coordinator"
	RoleAdmin       = "admin"
)

// ParseToken validates an HS256 token and returns its subject and role.
func ParseToken(tokenStr, secret string) (userID, role string, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}

	switch v := claims["id"].(type) {
	case string:
		userID = v
	case float64:
		userID = strconv.FormatInt(int64(v), 10)
	default:
		if sub, err := claims.GetSubject(); err == nil {
			userID = sub
		}
	}
	if userID == "" {
		return "", "", errors.New("token has no user id")
	}
	role, _ = claims["role"].(string)
	return userID, role, nil
}

// Auth rejects requests without a valid bearer token.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		userID, role, err := ParseToken(strings.TrimSpace(strings.TrimPrefix(authz, "Bearer ")), secret)
		if err != nil {
			telemetry.Logger.Debug("Rejected bearer token", zap.Error(err))
			abort(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxRole, role)
		c.Next()
	}
}

// RequireRole admits only callers whose role is one of roles. Admins always pass.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == RoleAdmin {
			c.Next()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, fmt.Sprintf("role %q is not allowed here", role))
	}
}

func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }
func Role(c *gin.Context) string   { return c.GetString(ctxRole) }

// SetIdentity is used by tests and trusted internal callers.
func SetIdentity(c *gin.Context, userID, role string) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
