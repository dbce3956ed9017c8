// Package auth implements account registration, credential login and JWT
// issuance/verification.
package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/types"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterRequest carries the fields of a new account
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest carries login credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenPair holds an issued access token and its expiry
type TokenPair struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ChangePasswordRequest carries a password rotation for the current user
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// Service implements authentication operations.
type Service struct {
	users  database.UserRepositoryInterface
	cfg    *config.AuthConfig
	logger *logging.Logger
}

// NewService creates a new authentication service
func NewService(users database.UserRepositoryInterface, cfg *config.AuthConfig, logger *logging.Logger) *Service {
	return &Service{
		users:  users,
		cfg:    cfg,
		logger: logger,
	}
}

// Register creates a new user account with role "user".
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*types.User, error) {
	if err := s.validateRegister(req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, req.Username); err == nil {
		return nil, errors.NewConflictError("username is already taken")
	} else if !errors.IsType(err, errors.ErrorTypeNotFound) {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return nil, errors.NewConflictError("email is already registered")
	} else if !errors.IsType(err, errors.ErrorTypeNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, errors.NewInternalError("failed to hash password").WithCause(err)
	}

	user := &types.User{
		Username:     req.Username,
		Email:        strings.ToLower(req.Email),
		PasswordHash: string(hash),
		Role:         types.RoleUser,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.LogAuthEvent(ctx, "user_registered", user.Username, true, nil)
	return user, nil
}

// Login verifies credentials and issues a token. Unknown users and wrong
// passwords produce the same authentication error.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenPair, *types.User, error) {
	if req == nil || req.Username == "" || req.Password == "" {
		return nil, nil, errors.NewValidationError("username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeNotFound) {
			s.logger.LogAuthEvent(ctx, "login_failed", req.Username, false, nil)
			return nil, nil, errors.NewAuthenticationError("invalid username or password")
		}
		return nil, nil, err
	}

	if !user.IsActive {
		s.logger.LogAuthEvent(ctx, "login_rejected_inactive", req.Username, false, nil)
		return nil, nil, errors.NewAuthenticationError("account is disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.LogAuthEvent(ctx, "login_failed", req.Username, false, nil)
		return nil, nil, errors.NewAuthenticationError("invalid username or password")
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, nil, err
	}

	s.logger.LogAuthEvent(ctx, "login_succeeded", user.Username, true, nil)
	return token, user, nil
}

// IssueToken signs a JWT for the given user
func (s *Service) IssueToken(user *types.User) (*TokenPair, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.JWTExpiration)

	claims := JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "loadpress",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, errors.NewInternalError("failed to sign token").WithCause(err)
	}

	return &TokenPair{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken parses and verifies a signed JWT
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.NewAuthenticationError("unexpected token signing method")
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, errors.NewAuthenticationError("invalid or expired token").WithCause(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.NewAuthenticationError("invalid token claims")
	}
	return claims, nil
}

// GetProfile retrieves the account for an authenticated user
func (s *Service) GetProfile(ctx context.Context, userID int64) (*types.User, error) {
	return s.users.GetByID(ctx, userID)
}

// ChangePassword rotates the password for an authenticated user after
// verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, userID int64, req *ChangePasswordRequest) error {
	if req == nil || req.OldPassword == "" {
		return errors.NewValidationError("current password is required")
	}
	if len(req.NewPassword) < 8 {
		return errors.NewValidationError("password must be at least 8 characters")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		s.logger.LogAuthEvent(ctx, "password_change_failed", user.Username, false, nil)
		return errors.NewAuthenticationError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cfg.BcryptCost)
	if err != nil {
		return errors.NewInternalError("failed to hash password").WithCause(err)
	}

	user.PasswordHash = string(hash)
	if err := s.users.Update(ctx, user); err != nil {
		return err
	}

	s.logger.LogAuthEvent(ctx, "password_changed", user.Username, true, nil)
	return nil
}

// ListUsers returns a page of accounts for administrators
func (s *Service) ListUsers(ctx context.Context, pagination *database.Pagination) ([]*types.User, int64, error) {
	return s.users.List(ctx, database.DefaultPagination(pagination))
}

func (s *Service) validateRegister(req *RegisterRequest) error {
	if req == nil {
		return errors.NewValidationError("request body is required")
	}
	if !usernamePattern.MatchString(req.Username) {
		return errors.NewValidationError("username must be 3-32 characters of letters, digits, underscore or hyphen")
	}
	if !emailPattern.MatchString(req.Email) {
		return errors.NewValidationError("email is not valid")
	}
	if len(req.Password) < 8 {
		return errors.NewValidationError("password must be at least 8 characters")
	}
	return nil
}
