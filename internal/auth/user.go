package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/office-erp/internal/authz"
	"github.com/frahmantamala/office-erp/internal/core/datamodel/user"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	Logout(ctx context.Context, accessToken string) error
	Authenticated(ctx context.Context, accessToken string) (authz.Subject, error)
}

type RepositoryAPI interface {
	GetByUsername(ctx context.Context, username string) (*Identity, error)
	GetByID(ctx context.Context, id int64) (*Identity, error)
}

type TokenGeneratorAPI interface {
	GenerateAccessToken(userID int64, username string) (token string, err error)
	GenerateRefreshToken(userID int64, username string) (token string, err error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// RevocationStore remembers logged-out tokens until they would have expired anyway.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, remaining time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Identity is the login view of a user row.
type Identity struct {
	ID           int64
	Username     string
	PasswordHash string
	Status       string
	EmployeeID   *int64
}

func (i *Identity) Active() bool {
	return i.Status == user.StatusActive
}

func (i *Identity) Subject() authz.Subject {
	return authz.Subject{
		UserID:     i.ID,
		Username:   i.Username,
		Status:     i.Status,
		EmployeeID: i.EmployeeID,
	}
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
