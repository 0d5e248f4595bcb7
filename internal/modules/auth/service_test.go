package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/nablus1/TurfArena-booking/internal/domain"
	"github.com/nablus1/TurfArena-booking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	if args.Error(0) == nil {
		u.ID = 11
	}
	return args.Error(0)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserRepo) ExistsByPhone(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

type fakeJWT struct{}

func (fakeJWT) GenerateToken(userID int64, role string) (string, error) {
	return "token-" + role, nil
}

func newTestService(repo *mockUserRepo) *Service {
	s := NewService(repo, fakeJWT{})
	s.cost = bcrypt.MinCost
	return s
}

func validRegister() RegisterRequest {
	return RegisterRequest{Name: "Otieno", Email: "Otieno@Example.com ", Phone: "0712345678", Password: "secret1"}
}

func TestRegister_Success(t *testing.T) {
	repo := new(mockUserRepo)
	repo.On("ExistsByEmail", mock.Anything, "otieno@example.com").Return(false, nil)
	repo.On("ExistsByPhone", mock.Anything, "254712345678").Return(false, nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Role == domain.RoleUser && u.Phone == "254712345678" && u.PasswordHash != "secret1"
	})).Return(nil)

	user, token, err := newTestService(repo).Register(context.Background(), validRegister())
	require.NoError(t, err)
	assert.Equal(t, int64(11), user.ID)
	assert.Equal(t, "token-USER", token)
	repo.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	cases := map[string]func(r *RegisterRequest){
		"short name":     func(r *RegisterRequest) { r.Name = "A" },
		"bad email":      func(r *RegisterRequest) { r.Email = "nope" },
		"foreign phone":  func(r *RegisterRequest) { r.Phone = "+447700900123" },
		"short password": func(r *RegisterRequest) { r.Password = "12345" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := validRegister()
			mutate(&req)
			_, _, err := newTestService(new(mockUserRepo)).Register(context.Background(), req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	repo := new(mockUserRepo)
	repo.On("ExistsByEmail", mock.Anything, "otieno@example.com").Return(true, nil)
	_, _, err := newTestService(repo).Register(context.Background(), validRegister())
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)

	repo = new(mockUserRepo)
	repo.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("ExistsByPhone", mock.Anything, "254712345678").Return(true, nil)
	_, _, err = newTestService(repo).Register(context.Background(), validRegister())
	assert.ErrorIs(t, err, ErrPhoneAlreadyExists)

	repo = new(mockUserRepo)
	repo.On("ExistsByEmail", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("ExistsByPhone", mock.Anything, mock.Anything).Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.Join(repository.ErrDuplicate, errors.New("UNIQUE constraint failed")))
	_, _, err = newTestService(repo).Register(context.Background(), validRegister())
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestLogin(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	stored := &domain.User{ID: 5, Email: "a@example.com", PasswordHash: string(hash), Role: domain.RoleAdmin}

	repo := new(mockUserRepo)
	repo.On("GetByEmail", mock.Anything, "a@example.com").Return(stored, nil)
	repo.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, repository.ErrNotFound)
	svc := newTestService(repo)

	user, token, err := svc.Login(context.Background(), LoginRequest{Email: "A@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), user.ID)
	assert.Equal(t, "token-ADMIN", token)

	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "a@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGetCurrentUser_NotFound(t *testing.T) {
	repo := new(mockUserRepo)
	repo.On("GetByID", mock.Anything, int64(9)).Return(nil, repository.ErrNotFound)
	_, err := newTestService(repo).GetCurrentUser(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
