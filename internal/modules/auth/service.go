package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/pkg/mpesa"
	"github.com/nablus1/TurfArena-booking/internal/pkg/validator"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// Service contains the registration and login logic.
type Service struct {
	users UserRepositoryInterface
	jwt   jwtService
	cost  int
}

func NewService(users UserRepositoryInterface, jwt jwtService) *Service {
	return &Service{users: users, jwt: jwt, cost: bcrypt.DefaultCost}
}

// Register creates a USER account and returns it with an access token.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.User, string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	if fields := validator.Validate(req); fields != nil {
		return nil, "", &ValidationError{Fields: fields}
	}

	phone, err := mpesa.NormalizePhone(req.Phone)
	if err != nil {
		return nil, "", &ValidationError{Fields: map[string]string{"Phone": "kephone"}}
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", ErrEmailAlreadyExists
	}
	exists, err = s.users.ExistsByPhone(ctx, phone)
	if err != nil {
		return nil, "", err
	}
	if exists {
		return nil, "", ErrPhoneAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, "", err
	}

	user := &domain.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// lost a race against a concurrent registration
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrEmailAlreadyExists
		}
		return nil, "", err
	}

	token, err := s.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*domain.User, string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if fields := validator.Validate(req); fields != nil {
		return nil, "", &ValidationError{Fields: fields}
	}

	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(user.ID, string(user.Role))
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) GetCurrentUser(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}
