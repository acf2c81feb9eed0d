package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"laundry-dispatch/internal/middleware"
	"laundry-dispatch/internal/models"
)

// ServiceInterface defines the contract for the user service.
type ServiceInterface interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	IsActiveDriver(ctx context.Context, driverID int64) (bool, error)
	EmailFor(ctx context.Context, userID int64) (string, error)
}

// Service implements authentication and the identity/role lookups other
// modules depend on.
type Service struct {
	repo      RepositoryInterface
	jwtSecret string
	tokenTTL  time.Duration
}

// NewService creates a new user service.
func NewService(repo RepositoryInterface, jwtSecret string) *Service {
	return &Service{repo: repo, jwtSecret: jwtSecret, tokenTTL: 24 * time.Hour}
}

// Login verifies credentials and issues a JWT.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if !user.IsActive {
		return nil, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}

	claims := middleware.Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, fmt.Errorf("service.Login: sign token: %w", err)
	}
	return &models.LoginResponse{Token: signed, User: user}, nil
}

// IsActiveDriver reports whether the user exists, is active, and holds the
// DRIVER role.
func (s *Service) IsActiveDriver(ctx context.Context, driverID int64) (bool, error) {
	user, err := s.repo.FindByID(ctx, driverID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service.IsActiveDriver: %w", err)
	}
	return user.IsActive && user.Role == models.RoleDriver, nil
}

// EmailFor resolves a user id to an email address for the notification sink.
func (s *Service) EmailFor(ctx context.Context, userID int64) (string, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
