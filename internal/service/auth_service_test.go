package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/noam-katz/lomda-api/internal/dto"
	"github.com/noam-katz/lomda-api/internal/models"
	"github.com/noam-katz/lomda-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

type stubUserRepo struct {
	users         map[uint]models.User
	nextID        uint
	enrollments   map[[2]uint]bool
	enrolled      []models.Course
	progressCalls [][3]uint
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: map[uint]models.User{}, enrollments: map[[2]uint]bool{}}
}

func (s *stubUserRepo) Register(_ context.Context, user *models.User) error {
	if user.Role == models.RoleAdmin {
		for _, existing := range s.users {
			if existing.Role == models.RoleAdmin {
				return repository.ErrAdminExists
			}
		}
	}
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id uint) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) GetByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, user)
		}
	}
	return out, nil
}

func (s *stubUserRepo) Update(_ context.Context, user *models.User) error {
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepo) List(_ context.Context, _, _ int) ([]models.User, error) {
	out := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *stubUserRepo) SetBlocked(_ context.Context, id uint, blocked bool) (models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	user.Blocked = blocked
	s.users[id] = user
	return user, nil
}

func (s *stubUserRepo) Enroll(_ context.Context, userID, courseID uint) error {
	key := [2]uint{userID, courseID}
	if s.enrollments[key] {
		return repository.ErrAlreadyEnrolled
	}
	s.enrollments[key] = true
	return nil
}

func (s *stubUserRepo) IsEnrolled(_ context.Context, userID, courseID uint) (bool, error) {
	return s.enrollments[[2]uint{userID, courseID}], nil
}

func (s *stubUserRepo) ListEnrolledCourses(_ context.Context, _ uint) ([]models.Course, error) {
	return s.enrolled, nil
}

func (s *stubUserRepo) SaveLessonProgress(_ context.Context, userID, courseID, lessonID uint) error {
	s.progressCalls = append(s.progressCalls, [3]uint{userID, courseID, lessonID})
	return nil
}

func TestAuthServiceRegisterHashesPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testValidator(), "secret", time.Hour, nil, testLogger())

	user, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name:     "Noa Levi",
		Email:    "Noa.Levi@Example.com",
		Password: "hunter22",
		Role:     models.RoleUser,
	})
	require.NoError(t, err)
	require.Equal(t, "noa.levi@example.com", user.Email, "emails are normalized to lowercase")

	stored := repo.users[user.ID]
	require.NotEqual(t, "hunter22", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter22")))
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testValidator(), "secret", time.Hour, nil, testLogger())

	payload := dto.RegisterRequest{Name: "Noa Levi", Email: "noa@example.com", Password: "hunter22", Role: models.RoleUser}
	_, err := svc.Register(context.Background(), payload)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), payload)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthServiceRegisterAdminGuards(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testValidator(), "secret", time.Hour, []string{"tophat"}, testLogger())

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Wannabe", Email: "a@example.com", Password: "hunter22", Role: models.RoleAdmin, AdminCode: "wrong",
	})
	require.ErrorIs(t, err, ErrInvalidAdminCode)

	_, err = svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Real Admin", Email: "admin@example.com", Password: "hunter22", Role: models.RoleAdmin, AdminCode: "tophat",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Second Admin", Email: "admin2@example.com", Password: "hunter22", Role: models.RoleAdmin, AdminCode: "tophat",
	})
	require.ErrorIs(t, err, ErrAdminExists)
}

func TestAuthServiceLoginIssuesToken(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testValidator(), "secret", 24*time.Hour, nil, testLogger())

	registered, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Noa Levi", Email: "noa@example.com", Password: "hunter22", Role: models.RoleUser,
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), dto.LoginRequest{Email: "noa@example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.Equal(t, registered.ID, result.User.ID)

	token, err := jwt.Parse(result.Token, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	require.Equal(t, float64(registered.ID), claims["sub"])
	require.Equal(t, models.RoleUser, claims["role"])
	require.Equal(t, float64(86400), claims["exp"].(float64)-claims["iat"].(float64))
}

func TestAuthServiceLoginRejections(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewAuthService(repo, testValidator(), "secret", time.Hour, []string{"tophat"}, testLogger())

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Noa Levi", Email: "noa@example.com", Password: "hunter22", Role: models.RoleUser,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "noa@example.com", Password: "nope"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "ghost@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	admin, err := svc.Register(context.Background(), dto.RegisterRequest{
		Name: "Real Admin", Email: "admin@example.com", Password: "hunter22", Role: models.RoleAdmin, AdminCode: "tophat",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: admin.Email, Password: "hunter22"})
	require.ErrorIs(t, err, ErrInvalidAdminCode, "admin logins need the admin code")

	_, err = repo.SetBlocked(context.Background(), registeredID(repo, "noa@example.com"), true)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), dto.LoginRequest{Email: "noa@example.com", Password: "hunter22"})
	require.ErrorIs(t, err, ErrUserBlocked)
}

func registeredID(repo *stubUserRepo, email string) uint {
	for id, user := range repo.users {
		if user.Email == email {
			return id
		}
	}
	return 0
}
