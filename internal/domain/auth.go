package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims — клеймы агентского токена для /api/run.
// Scopes вида "run": true или "run:demo": true.
type CustomClaims struct {
	UserID string          `json:"user_id"`
	Scopes map[string]bool `json:"scopes"`
	jwt.RegisteredClaims
}
