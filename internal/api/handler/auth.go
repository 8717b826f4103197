package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

const identityKey = "identity"

var errInvalidToken = errors.New("invalid or expired token")

// Identity is the verified caller resolved from a bearer credential.
// Token issuance lives in the auth service; this side only verifies.
type Identity struct {
	UserID   string
	Operator bool
}

// identityFromToken validates an HS256 bearer token and extracts the user
// id (claim "user_id", falling back to "sub") and role.
func (h *Handler) identityFromToken(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return []byte(h.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errInvalidToken
	}
	userID, _ := claims["user_id"].(string)
	if userID == "" {
		userID, _ = claims["sub"].(string)
	}
	if userID == "" {
		return nil, errInvalidToken
	}
	role, _ := claims["role"].(string)

	return &Identity{UserID: userID, Operator: role == "operator"}, nil
}

// AuthRequired rejects any call without a valid bearer credential before
// the handler runs. No partial processing on auth failure.
func (h *Handler) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}
		ident, err := h.identityFromToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidToken.Error()})
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) *Identity {
	v, _ := c.Get(identityKey)
	ident, _ := v.(*Identity)
	return ident
}
