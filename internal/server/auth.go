// ABOUTME: HS256 bearer token issuing and the gin middleware that verifies it.
// ABOUTME: The token subject is the numeric owner id every core operation is scoped to.
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ownerContextKey = "ownerID"

// IssueToken signs a token for owner. A zero ttl never expires.
func IssueToken(secret []byte, owner int64, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("jwt secret is empty")
	}
	if owner <= 0 {
		return "", fmt.Errorf("owner id must be positive, got %d", owner)
	}
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(owner, 10),
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken verifies tokenString and returns its owner id.
func ParseToken(secret []byte, tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid claims")
	}
	var owner int64
	switch sub := claims["sub"].(type) {
	case string:
		owner, err = strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("subject %q is not an owner id", sub)
		}
	case float64:
		owner = int64(sub)
	default:
		return 0, errors.New("subject claim missing")
	}
	if owner <= 0 {
		return 0, fmt.Errorf("owner id must be positive, got %d", owner)
	}
	return owner, nil
}

// Auth requires a valid bearer token and stores the owner id on the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("authorization header required"))
			return
		}
		owner, err := ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			RespondError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		c.Set(ownerContextKey, owner)
		c.Next()
	}
}

func ownerID(c *gin.Context) int64 {
	return c.GetInt64(ownerContextKey)
}
