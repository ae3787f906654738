package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/repository"
)

var (
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrUserBlocked indicates a blocked account attempted to log in.
	ErrUserBlocked = errors.New("account is blocked, contact the administrator")
	// ErrInvalidAdminCode indicates an admin registration/login with a wrong code.
	ErrInvalidAdminCode = errors.New("invalid admin code")
	// ErrAdminExists re-exports the repository sentinel for handler mapping.
	ErrAdminExists = repository.ErrAdminExists
)

// Actor identifies the authenticated caller across service operations.
type Actor struct {
	ID    uint
	Name  string
	Email string
	Role  string
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return strings.EqualFold(a.Role, models.RoleAdmin)
}

// AuthService registers accounts and issues bearer tokens.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error)
}

type authService struct {
	repo       repository.UserRepository
	validator  *validator.Validate
	logger     zerolog.Logger
	secret     []byte
	tokenTTL   time.Duration
	adminCodes map[string]struct{}
	now        func() time.Time
}

// NewAuthService constructs an auth service.
func NewAuthService(repo repository.UserRepository, validate *validator.Validate, secret string, tokenTTL time.Duration, adminCodes []string, logger zerolog.Logger) AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}

	codes := make(map[string]struct{}, len(adminCodes))
	for _, code := range adminCodes {
		code = strings.TrimSpace(code)
		if code != "" {
			codes[code] = struct{}{}
		}
	}

	return &authService{
		repo:       repo,
		validator:  validate,
		logger:     logger.With().Str("component", "auth_service").Logger(),
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		adminCodes: codes,
		now:        time.Now,
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))

	if payload.Role == models.RoleAdmin {
		if !s.adminCodeValid(payload.AdminCode) {
			return dto.UserResponse{}, ErrInvalidAdminCode
		}
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return dto.UserResponse{}, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        email,
		PasswordHash: string(hash),
		Role:         payload.Role,
	}

	if err := s.repo.Register(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("role", user.Role).Msg("user registered")

	return dto.NewUserResponse(user), nil
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.LoginResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.LoginResponse{}, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.LoginResponse{}, ErrInvalidCredentials
		}
		return dto.LoginResponse{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		return dto.LoginResponse{}, ErrInvalidCredentials
	}

	if user.Blocked {
		return dto.LoginResponse{}, ErrUserBlocked
	}

	if user.Role == models.RoleAdmin && !s.adminCodeValid(payload.AdminCode) {
		return dto.LoginResponse{}, ErrInvalidAdminCode
	}

	token, err := s.issueToken(user)
	if err != nil {
		return dto.LoginResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("user logged in")

	return dto.LoginResponse{Token: token, User: dto.NewUserResponse(user)}, nil
}

func (s *authService) adminCodeValid(code string) bool {
	_, ok := s.adminCodes[strings.TrimSpace(code)]
	return ok
}

func (s *authService) issueToken(user models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
