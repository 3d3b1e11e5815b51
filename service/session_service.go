package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"greengate/config"
	"greengate/entity"
	"greengate/pkg/apperr"
	"greengate/pkg/logger"
)

// SessionService interface defines signed session token operations
type SessionService interface {
	Issue(subscriber *entity.Subscriber) (*entity.AuthResponse, error)
	Validate(tokenString string) (*SessionClaims, error)
}

// SessionClaims represents the session token claims
type SessionClaims struct {
	SubscriberID int    `json:"subscriber_id"`
	PhoneNumber  string `json:"phone_number"`
	Role         string `json:"role"`
	jwt.RegisteredClaims
}

// sessionService implements SessionService interface
type sessionService struct {
	cfg    *config.Config
	logger *logger.Logger
}

// NewSessionService creates a new session service instance
func NewSessionService(cfg *config.Config, logger *logger.Logger) SessionService {
	return &sessionService{
		cfg:    cfg,
		logger: logger,
	}
}

// Issue signs an HS256 session token for the subscriber.
func (s *sessionService) Issue(subscriber *entity.Subscriber) (*entity.AuthResponse, error) {
	expiresAt := time.Now().Add(s.cfg.SessionToken.ExpirationTime)

	claims := SessionClaims{
		SubscriberID: subscriber.ID,
		PhoneNumber:  subscriber.PhoneNumber,
		Role:         subscriber.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "greengate-identity-service",
			Subject:   fmt.Sprintf("subscriber:%d", subscriber.ID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.Secrets.TokenSecret))
	if err != nil {
		s.logger.Errorw("Failed to sign session token", "subscriber_id", subscriber.ID, "error", err)
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.logger.Infow("Session token issued", "subscriber_id", subscriber.ID, "expires_at", expiresAt)

	return &entity.AuthResponse{
		Token:      tokenString,
		Subscriber: subscriber.ToResponse(),
		ExpiresAt:  expiresAt,
		Message:    "Authentication successful",
	}, nil
}

// Validate parses and verifies a session token, returning its claims.
// Expiry is enforced by the parser; any failure is an auth-token error.
func (s *sessionService) Validate(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secrets.TokenSecret), nil
	})
	if err != nil {
		s.logger.Warnw("Failed to validate session token", "error", err)
		return nil, apperr.AuthToken("invalid or expired session token", err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, apperr.AuthToken("invalid session token claims", nil)
	}

	return claims, nil
}
