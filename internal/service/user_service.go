package service

import (
	"context"
	"errors"

	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/jwt"
	"whatsapp-assistant/backend/pkg/logger"
)

// TokenIssuer signs access tokens
type TokenIssuer interface {
	GenerateToken(userID uint, email string) (string, error)
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token string              `json:"token"`
	User  models.UserResponse `json:"user"`
}

// UserService handles operator authentication
type UserService struct {
	repo   repository.Repository
	tokens TokenIssuer
	log    *logger.Logger
}

var _ TokenIssuer = (*jwt.Service)(nil)

// NewUserService creates a user service
func NewUserService(repo repository.Repository, tokens TokenIssuer, log *logger.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, log: log}
}

// Login checks credentials and issues a token
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*LoginResult, error) {
	email := models.NormalizeEmail(req.Email)

	user, err := s.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(req.Password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	s.log.Info("User logged in", "user_id", user.ID)
	return &LoginResult{Token: token, User: user.ToResponse()}, nil
}

// Me returns the public view of a user
func (s *UserService) Me(ctx context.Context, userID uint) (*models.UserResponse, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

// SeedUser makes sure an operator account exists. An existing account keeps
// its password; one created by the resolver for fixed routing has none and
// gets the seeded password.
func (s *UserService) SeedUser(ctx context.Context, email, password string) (*models.User, error) {
	email = models.NormalizeEmail(email)

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err == nil {
		if user.HasPassword() {
			return user, nil
		}
		return s.setPassword(ctx, user, password)
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &models.User{Email: email, PasswordHash: hash}
	err = s.repo.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		existing, err := s.repo.FindUserByEmail(ctx, email)
		if err != nil || existing.HasPassword() {
			return existing, err
		}
		return s.setPassword(ctx, existing, password)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Seeded operator user", "user_id", user.ID, "email", email)
	return user, nil
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string) (*models.User, error) {
	hash, err := models.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetPasswordHash(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	user.PasswordHash = hash
	s.log.Info("Set password on routed operator user", "user_id", user.ID)
	return user, nil
}
