package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/casa-rifa/raffle-api/internal/domain"
	"github.com/casa-rifa/raffle-api/internal/repository"
)

type fakeAuthRepo struct {
	byEmail map[string]domain.User
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{byEmail: make(map[string]domain.User)}
}

func (r *fakeAuthRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := r.byEmail[user.Email]; ok {
		return domain.User{}, repository.ErrUserEmailExists
	}
	user.ID = uuid.New()
	r.byEmail[user.Email] = user

	return user, nil
}

func (r *fakeAuthRepo) FindByEmail(_ context.Context, email string) (domain.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return domain.User{}, repository.ErrUserNotFound
	}

	return user, nil
}

func TestAuthService_SignupHashesPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo)

	created, err := svc.Signup(context.Background(), domain.User{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "passw0rd123",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "passw0rd123", created.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.Password), []byte("passw0rd123")))
}

func TestAuthService_SignupNeverGrantsAdmin(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo())

	created, err := svc.Signup(context.Background(), domain.User{
		Name:     "Ana",
		Email:    "ana@example.com",
		Password: "passw0rd123",
		IsAdmin:  true,
	})
	require.NoError(t, err)

	assert.False(t, created.IsAdmin)
}

func TestAuthService_SignupDuplicateEmail(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo())

	ctx := context.Background()
	_, err := svc.Signup(ctx, domain.User{Email: "ana@example.com", Password: "passw0rd123"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, domain.User{Email: "ana@example.com", Password: "other0ne456"})
	assert.ErrorIs(t, err, ErrUserEmailExists)
}

func TestAuthService_Login(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo())

	ctx := context.Background()
	_, err := svc.Signup(ctx, domain.User{Email: "ana@example.com", Password: "passw0rd123"})
	require.NoError(t, err)

	user, err := svc.Login(ctx, "ana@example.com", "passw0rd123")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)

	_, err = svc.Login(ctx, "ana@example.com", "wrongpass99")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = svc.Login(ctx, "nobody@example.com", "passw0rd123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
