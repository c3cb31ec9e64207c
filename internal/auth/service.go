package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/frahmantamala/office-erp/internal"
	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/common/validation"
)

// Service is the main auth service with dependencies
type Service struct {
	repo           RepositoryAPI
	tokenGenerator TokenGeneratorAPI
	revocations    RevocationStore
	logger         *slog.Logger
}

// NewService creates a new auth service. A nil revocation store disables logout
// revocation.
func NewService(repo RepositoryAPI, tokenGen TokenGeneratorAPI, revocations RevocationStore, logger *slog.Logger) *Service {
	if revocations == nil {
		revocations = noRevocations{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:           repo,
		tokenGenerator: tokenGen,
		revocations:    revocations,
		logger:         logger,
	}
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(cfg internal.SecurityConfig) *JWTTokenGenerator {
	gen := &JWTTokenGenerator{
		AccessTokenSecret:  []byte(cfg.AccessTokenSecret),
		RefreshTokenSecret: []byte(cfg.RefreshTokenSecret),
		AccessTokenTTL:     cfg.AccessTokenDuration,
		RefreshTokenTTL:    cfg.RefreshTokenDuration,
	}
	if gen.AccessTokenTTL <= 0 {
		gen.AccessTokenTTL = 15 * time.Minute
	}
	if gen.RefreshTokenTTL <= 0 {
		gen.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return gen
}

// Authenticate validates credentials and returns tokens. Only active users may log in.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if appErr := validation.Struct(dto); appErr != nil {
		return AuthTokens{}, appErr
	}

	identity, err := s.repo.GetByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return AuthTokens{}, ErrInvalidCredentials
		}
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}

	if err := VerifyPassword(identity.PasswordHash, dto.Password); err != nil {
		s.logger.WarnContext(ctx, "login failed: wrong password", "username", dto.Username)
		return AuthTokens{}, ErrInvalidCredentials
	}

	if !identity.Active() {
		s.logger.WarnContext(ctx, "login refused for inactive user", "user_id", identity.ID, "status", identity.Status)
		return AuthTokens{}, ErrUserInactive
	}

	return s.issue(identity)
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return AuthTokens{}, err
	}

	identity, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return AuthTokens{}, ErrInvalidToken
		}
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}
	if !identity.Active() {
		return AuthTokens{}, ErrUserInactive
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.Remaining()); err != nil {
		s.logger.WarnContext(ctx, "failed to revoke rotated refresh token", "error", err, "user_id", claims.UserID)
	}

	return s.issue(identity)
}

// Logout revokes the access token for the rest of its lifetime.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokenGenerator.ValidateAccessToken(accessToken)
	if err != nil {
		return err
	}
	if err := s.revocations.Revoke(ctx, claims.ID, claims.Remaining()); err != nil {
		return internal.NewInternalError("failed to revoke token", err)
	}
	s.logger.InfoContext(ctx, "user logged out", "user_id", claims.UserID)
	return nil
}

// Authenticated resolves an access token to the subject it was issued for, re-reading
// the user so status changes take effect before the token expires.
func (s *Service) Authenticated(ctx context.Context, accessToken string) (authz.Subject, error) {
	claims, err := s.tokenGenerator.ValidateAccessToken(accessToken)
	if err != nil {
		return authz.Subject{}, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return authz.Subject{}, err
	}

	identity, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return authz.Subject{}, ErrInvalidToken
		}
		return authz.Subject{}, internal.NewInternalError("failed to load user", err)
	}
	if !identity.Active() {
		return authz.Subject{}, ErrUserInactive
	}
	return identity.Subject(), nil
}

func (s *Service) checkRevoked(ctx context.Context, claims *Claims) error {
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return internal.NewInternalError("failed to check token revocation", err)
	}
	if revoked {
		return ErrInvalidToken
	}
	return nil
}

func (s *Service) issue(identity *Identity) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(identity.ID, identity.Username)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}

	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(identity.ID, identity.Username)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}

	var expiresIn int64
	if gen, ok := s.tokenGenerator.(*JWTTokenGenerator); ok {
		expiresIn = int64(gen.AccessTokenTTL.Seconds())
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
	}, nil
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID int64, username string) (string, error) {
	return j.sign(userID, username, TokenTypeAccess, j.AccessTokenTTL, j.AccessTokenSecret)
}

// GenerateRefreshToken creates a new refresh token
func (j *JWTTokenGenerator) GenerateRefreshToken(userID int64, username string) (string, error) {
	return j.sign(userID, username, TokenTypeRefresh, j.RefreshTokenTTL, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) ValidateAccessToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeAccess, j.AccessTokenSecret)
}

func (j *JWTTokenGenerator) ValidateRefreshToken(tokenString string) (*Claims, error) {
	return j.validate(tokenString, TokenTypeRefresh, j.RefreshTokenSecret)
}

func (j *JWTTokenGenerator) sign(userID int64, username, tokenType string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID,
		Username:  username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("%d", userID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (j *JWTTokenGenerator) validate(tokenString, tokenType string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.TokenType != tokenType || claims.UserID <= 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type noRevocations struct{}

func (noRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (noRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }
