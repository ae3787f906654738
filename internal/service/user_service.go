package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/repository"
)

// ErrProfileForbidden indicates an attempt to modify another user's profile.
var ErrProfileForbidden = errors.New("cannot modify another user's profile")

// UserService covers profile edits and the admin user views.
type UserService interface {
	UpdateProfile(ctx context.Context, id uint, actor Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error)
	SetProfilePicture(ctx context.Context, id uint, actor Actor, url string) (dto.UserResponse, error)
	List(ctx context.Context, skip, limit int) ([]dto.UserResponse, error)
	SetBlocked(ctx context.Context, id uint, blocked bool) (dto.UserResponse, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewUserService constructs a user service.
func NewUserService(repo repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		repo:      repo,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) UpdateProfile(ctx context.Context, id uint, actor Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if actor.ID != id {
		return dto.UserResponse{}, ErrProfileForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	if payload.Name != nil {
		user.Name = strings.TrimSpace(*payload.Name)
	}
	if payload.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*payload.Email))
	}
	if payload.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*payload.ProfilePicture)
	}

	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	return dto.NewUserResponse(user), nil
}

func (s *userService) SetProfilePicture(ctx context.Context, id uint, actor Actor, url string) (dto.UserResponse, error) {
	if actor.ID != id {
		return dto.UserResponse{}, ErrProfileForbidden
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user.ProfilePicture = url
	if err := s.repo.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", id).Msg("profile picture updated")

	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, skip, limit int) ([]dto.UserResponse, error) {
	users, err := s.repo.List(ctx, skip, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *userService) SetBlocked(ctx context.Context, id uint, blocked bool) (dto.UserResponse, error) {
	user, err := s.repo.SetBlocked(ctx, id, blocked)
	if err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", id).Bool("blocked", blocked).Msg("user block flag updated")

	return dto.NewUserResponse(user), nil
}
