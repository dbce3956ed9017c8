package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loadpress/loadpress/internal/database"
	"github.com/loadpress/loadpress/pkg/config"
	"github.com/loadpress/loadpress/pkg/errors"
	"github.com/loadpress/loadpress/pkg/logging"
	"github.com/loadpress/loadpress/pkg/types"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int64]*types.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *types.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int64) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, errors.NewNotFoundError("user")
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("user")
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("user")
}

func (f *fakeUserRepo) Update(ctx context.Context, user *types.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return errors.NewNotFoundError("user")
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) List(ctx context.Context, pagination *database.Pagination) ([]*types.User, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*types.User
	for id := int64(1); id < f.nextID; id++ {
		if u, ok := f.users[id]; ok {
			cp := *u
			all = append(all, &cp)
		}
	}
	total := int64(len(all))
	start := (pagination.Page - 1) * pagination.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + pagination.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func newTestService(t *testing.T) (*Service, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	logger, err := logging.NewLogger(nil)
	require.NoError(t, err)

	cfg := &config.AuthConfig{
		JWTSecret:     "test-secret-not-for-production",
		JWTExpiration: time.Hour,
		BcryptCost:    4, // fast hashing in tests
	}
	return NewService(users, cfg, logger), users
}

func validRegister() *RegisterRequest {
	return &RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "correct-horse-battery",
	}
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, types.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "correct-horse-battery", user.PasswordHash)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"short username", func(r *RegisterRequest) { r.Username = "ab" }},
		{"bad username chars", func(r *RegisterRequest) { r.Username = "alice smith" }},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }},
		{"short password", func(r *RegisterRequest) { r.Password = "short" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegister()
			tc.mutate(req)
			_, err := svc.Register(context.Background(), req)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	dup := validRegister()
	dup.Email = "other@example.com"
	_, err = svc.Register(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))

	dup = validRegister()
	dup.Username = "bob"
	_, err = svc.Register(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	token, user, err := svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotEmpty(t, token.AccessToken)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, types.RoleUser, claims.Role)
}

func TestLogin_WrongCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), &LoginRequest{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))

	_, _, err = svc.Login(context.Background(), &LoginRequest{Username: "nobody", Password: "whatever"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, users := newTestService(t)

	user, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	user.IsActive = false
	require.NoError(t, users.Update(context.Background(), user))

	_, _, err = svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestValidateToken_Garbage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc, _ := newTestService(t)
	other, _ := newTestService(t)
	other.cfg.JWTSecret = "a-different-secret-entirely"

	_, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	token, _, err := svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	_, err = other.ValidateToken(token.AccessToken)
	assert.Error(t, err)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, &ChangePasswordRequest{
		OldPassword: "correct-horse-battery",
		NewPassword: "staple-gun-sunrise",
	})
	require.NoError(t, err)

	// Old credentials no longer work, new ones do.
	_, _, err = svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	assert.Error(t, err)

	_, _, err = svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "staple-gun-sunrise",
	})
	assert.NoError(t, err)
}

func TestChangePassword_WrongCurrent(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, &ChangePasswordRequest{
		OldPassword: "not-my-password",
		NewPassword: "staple-gun-sunrise",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))

	// Password is untouched.
	_, _, err = svc.Login(context.Background(), &LoginRequest{
		Username: "alice",
		Password: "correct-horse-battery",
	})
	assert.NoError(t, err)
}

func TestChangePassword_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), validRegister())
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), user.ID, &ChangePasswordRequest{
		OldPassword: "correct-horse-battery",
		NewPassword: "short",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))

	err = svc.ChangePassword(context.Background(), user.ID, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestListUsers(t *testing.T) {
	svc, _ := newTestService(t)

	for _, name := range []string{"alice", "bob", "carol"} {
		req := validRegister()
		req.Username = name
		req.Email = name + "@example.com"
		_, err := svc.Register(context.Background(), req)
		require.NoError(t, err)
	}

	users, total, err := svc.ListUsers(context.Background(), &database.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)

	users, total, err = svc.ListUsers(context.Background(), &database.Pagination{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}
