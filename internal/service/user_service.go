package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/apperrors"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/auth"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/repository"
	"go.uber.org/zap"
)

// UserService registers accounts and issues tokens.
type UserService struct {
	users  repository.UserRepository
	tokens *auth.TokenManager
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(store *repository.Store, tokens *auth.TokenManager, logger *zap.Logger) *UserService {
	return &UserService{
		users:  store.Users,
		tokens: tokens,
		logger: logger.Named("user-service"),
		now:    time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, req *models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if strings.TrimSpace(req.Username) == "" || email == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("", "Username, email and password are required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     strings.TrimSpace(req.Username),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, apperrors.NewValidationError("", "User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.authResponse(user)
}

func (s *UserService) Login(ctx context.Context, req *models.LoginRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperrors.NewValidationError("", "Email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, &apperrors.NotFoundError{Resource: "User", Message: "User not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("Login rejected", zap.String("user_id", user.ID))
		return nil, apperrors.NewValidationError("", "Invalid credentials")
	}

	return s.authResponse(user)
}

// ResolveActor reloads the account named by a token. Admin rights come from
// the stored record, so a demotion takes effect before the token expires.
func (s *UserService) ResolveActor(ctx context.Context, actor models.Actor) (models.Actor, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return models.Actor{}, fmt.Errorf("%w: account %s no longer exists", apperrors.ErrUnauthorized, actor.UserID)
	}
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to load user: %w", err)
	}

	if user.IsAdmin != actor.IsAdmin {
		s.logger.Info("Token admin claim differs from account",
			zap.String("user_id", user.ID),
			zap.Bool("token_admin", actor.IsAdmin),
			zap.Bool("account_admin", user.IsAdmin),
		)
	}
	return models.Actor{UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

func (s *UserService) authResponse(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &models.AuthResponse{Token: token, UserID: user.ID, IsAdmin: user.IsAdmin}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
