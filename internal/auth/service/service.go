// Package service issues and refreshes JWT token pairs.
package service

import (
	"context"
	"time"

	"crm_renewal_backend/internal/auth/password"
	"crm_renewal_backend/internal/auth/repository"
	"crm_renewal_backend/platform/apperr"
	"crm_renewal_backend/platform/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	accessTokenType  = "access"
	refreshTokenType = "refresh"

	accessTokenTTL  = time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour

	opLogin   = "auth.service.login"
	opRefresh = "auth.service.refresh"
)

// TokenPair is an access token and the refresh token that renews it.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// UserReader loads credential rows.
type UserReader interface {
	GetUserByEmail(ctx context.Context, email string) (repository.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error)
}

type Service struct {
	repo UserReader
	cfg  config.JWTConfig
}

func New(repo UserReader, cfg config.JWTConfig) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// Login verifies credentials and issues a token pair. Invalid email and
// invalid password return the same error; callers cannot probe for
// registered addresses.
func (s *Service) Login(ctx context.Context, email, plainPassword string) (TokenPair, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return TokenPair{}, apperr.Unauthorized("invalid credentials").WithOp(opLogin)
		}
		return TokenPair{}, err
	}

	if !user.IsActive || !password.Verify(user.PasswordHash, plainPassword) {
		return TokenPair{}, apperr.Unauthorized("invalid credentials").WithOp(opLogin)
	}

	return s.issuePair(user.ID)
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.GetJWTAccessSecret()), nil
	})
	if err != nil || !parsed.Valid {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp(opRefresh)
	}
	if typ, _ := claims["type"].(string); typ != refreshTokenType {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp(opRefresh)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp(opRefresh)
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp(opRefresh)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil || !user.IsActive {
		return TokenPair{}, apperr.Unauthorized("invalid refresh token").WithOp(opRefresh)
	}

	return s.issuePair(user.ID)
}

func (s *Service) issuePair(userID uuid.UUID) (TokenPair, error) {
	now := time.Now()

	access, err := s.signToken(userID, accessTokenType, now, accessTokenTTL)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "sign access token failed", err)
	}
	refresh, err := s.signToken(userID, refreshTokenType, now, refreshTokenTTL)
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.KindInternal, "sign refresh token failed", err)
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) signToken(userID uuid.UUID, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"type": tokenType,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.GetJWTAccessSecret()))
}
