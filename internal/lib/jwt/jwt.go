package jwt

import (
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
)

// NewToken signs the session as an HS256 token. The session id travels in
// the jti claim.
func NewToken(session models.Session, jwtSecret string) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["jti"] = session.ID
	claims["uid"] = session.UserID
	claims["username"] = session.Username
	claims["exp"] = session.ExpiresAt.Unix()

	tokenString, err := token.SignedString([]byte(jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func ParseToken(tokenString string, secret string) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

// ParseSession verifies the token and extracts the session it describes.
func ParseSession(tokenString string, secret string) (models.Session, error) {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return models.Session{}, err
	}

	id, _ := claims["jti"].(string)
	username, _ := claims["username"].(string)
	uid, okUID := claims["uid"].(float64)
	exp, okExp := claims["exp"].(float64)
	if id == "" || !okUID || !okExp {
		return models.Session{}, fmt.Errorf("token is missing session claims")
	}

	return models.Session{
		ID:        id,
		UserID:    int64(uid),
		Username:  username,
		ExpiresAt: time.Unix(int64(exp), 0),
	}, nil
}
