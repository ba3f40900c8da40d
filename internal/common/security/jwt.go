package security

import (
	"errors"
	"time"
	"tle_arena/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken issues a signed token carrying the user id, role and player id
// (empty for organizer and admin accounts).
func GenerateToken(userID, role, playerID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":   userID,
		"role":      role,
		"player_id": playerID,
		"exp":       now.Add(config.AppConfig.JWTExp).Unix(),
		"iat":       now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims jwt.MapClaims) (string, error) {
	id, ok := claims["user_id"].(string)
	if !ok || id == "" {
		return "", errors.New("user_id claim is missing or not a string")
	}
	return id, nil
}

func GetUserRoleFromClaims(claims jwt.MapClaims) (string, error) {
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return "", errors.New("role claim is missing or not a string")
	}
	return role, nil
}

// GetPlayerIDFromClaims returns the player id claim, which may be empty.
func GetPlayerIDFromClaims(claims jwt.MapClaims) string {
	id, _ := claims["player_id"].(string)
	return id
}
