package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const adminSubject = "admin"

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// issueToken signs an admin token valid for ttl.
func issueToken(secret string, now time.Time, ttl time.Duration) (string, time.Time, error) {
	expires := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// login exchanges the admin password for a JWT
// POST /api/v1/auth/login
func (r *Router) login(c *gin.Context) {
	if r.cfg.AdminPassword == "" || r.cfg.JWTSecret == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "login is disabled"})
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(r.cfg.AdminPassword)) != 1 {
		r.logger.Warn("Rejected admin login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, expires, err := issueToken(r.cfg.JWTSecret, time.Now(), r.cfg.TokenTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}
