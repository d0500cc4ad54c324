package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
)

type Service struct {
	jwt *JWTManager
}

type TokenResult struct {
	AccessToken   string
	AccessExpires time.Time
	Identity      Identity
}

func NewService(jwtManager *JWTManager) *Service {
	return &Service{jwt: jwtManager}
}

// IssueToken mints an access token for a buyer. A missing buyer id gets a
// fresh one, so first-time clients can bootstrap an identity from an email.
func (s *Service) IssueToken(_ context.Context, buyerID, email string) (TokenResult, error) {
	if s.jwt == nil {
		return TokenResult{}, fmt.Errorf("jwt manager is nil")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return TokenResult{}, ErrInvalidInput
	}
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		buyerID = uuid.NewString()
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(buyerID, email)
	if err != nil {
		return TokenResult{}, fmt.Errorf("issue access token: %w", err)
	}

	return TokenResult{
		AccessToken:   token,
		AccessExpires: expiresAt,
		Identity:      Identity{BuyerID: buyerID, Email: email},
	}, nil
}

func (s *Service) ValidateAccessToken(_ context.Context, raw string) (Identity, error) {
	if s.jwt == nil {
		return Identity{}, fmt.Errorf("jwt manager is nil")
	}

	claims, err := s.jwt.ParseAccessToken(raw)
	if err != nil {
		return Identity{}, err
	}

	return Identity{BuyerID: claims.BuyerID, Email: claims.Email}, nil
}
