package services

import (
	"errors"
	"fmt"
	"time"

	"farm-advisory/internal/models"
	"farm-advisory/shared/utils"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "farm-advisory"

var ErrInvalidToken = errors.New("invalid token")

type JWTService struct {
	JWTSecret string
	now       func() time.Time
}

func NewJWTService(jwtSecret string) *JWTService {
	return &JWTService{
		JWTSecret: jwtSecret,
		now:       time.Now,
	}
}

// GenerateNewToken signs an HS256 token for userID. A ttl of zero issues a
// token without expiry, which is what the scheduler's service token uses.
func (s *JWTService) GenerateNewToken(userID string, roles []string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   tokenIssuer,
			Subject:  userID,
		},
		Id:     "C-" + utils.GenerateRandomStringWithLength(6),
		UserID: userID,
		Roles:  roles,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("error generate token string: %w", err)
	}
	return tokenString, nil
}

func (s *JWTService) VerifyToken(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&models.Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.JWTSecret), nil
		},
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}
	return claims, nil
}
