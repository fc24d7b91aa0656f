package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"gofolio/internal/logger"
)

// LoggerMiddleware logs one structured entry per request.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
			logger.String("client_ip", c.ClientIP()),
		}
		if query != "" {
			fields = append(fields, logger.String("query", query))
		}

		if len(c.Errors) > 0 {
			fields = append(fields, logger.Strings("errors", c.Errors.Errors()))
			log.Error("HTTP request with errors", fields...)
			return
		}
		log.Info("HTTP request", fields...)
	}
}

// authMiddleware accepts a static API key or an HS256 JWT issued by the
// login endpoint as the Bearer token.
func authMiddleware(validKeys map[string]struct{}, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(authHeader, prefix) {
			c.Header("WWW-Authenticate", `Bearer realm="gofolio"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))

		if _, ok := validKeys[token]; ok {
			c.Set(subjectKey, "api-key")
			c.Next()
			return
		}

		if secret != "" {
			if claims, err := parseToken(token, secret); err == nil {
				c.Set(subjectKey, claims.Subject)
				c.Next()
				return
			}
		}

		c.Header("WWW-Authenticate", `Bearer realm="gofolio", error="invalid_token"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
	}
}

const subjectKey = "subject"

// parseAPIKeys turns configured keys into a set, skipping blanks.
func parseAPIKeys(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(k); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func parseToken(tokenString, secret string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
