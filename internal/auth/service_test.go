package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/causerie-app/causerie/internal/db"
	"github.com/causerie-app/causerie/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository keyed by username.
type fakeUserRepo struct {
	byUsername map[string]*db.User
	updateErr  error
	updated    int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byUsername: make(map[string]*db.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *db.User) error {
	if _, ok := r.byUsername[user.Username]; ok {
		return repository.ErrConflict
	}
	for _, u := range r.byUsername {
		if u.Email == user.Email {
			return repository.ErrConflict
		}
	}
	user.ID = uuid.New()
	r.byUsername[user.Username] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*db.User, error) {
	for _, u := range r.byUsername {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*db.User, error) {
	u, ok := r.byUsername[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*db.User, error) {
	for _, u := range r.byUsername {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) List(_ context.Context) ([]db.User, error) {
	out := make([]db.User, 0, len(r.byUsername))
	for _, u := range r.byUsername {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, _ *db.User) error {
	r.updated++
	return r.updateErr
}

func newTestService(t *testing.T) (*Service, *fakeUserRepo) {
	t.Helper()
	repo := newFakeUserRepo()
	return NewService(repo, newTestJWTManager(t)), repo
}

func TestService_RegisterAndLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "password123", "#FF5733")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "#FF5733", user.Color)
	assert.NotEqual(t, "password123", user.Password, "password must be stored hashed")

	result, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	assert.NotNil(t, result.User.LastLoginAt)

	claims, err := svc.ValidateAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "#FF5733", claims.Color)
}

func TestService_RegisterDefaultColor(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register(context.Background(), "bob", "bob@example.com", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, defaultColor, user.Color)
}

func TestService_RegisterConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "password123", "")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = svc.Register(ctx, "alice2", "alice@example.com", "password123", "")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	// Unknown user and wrong password produce the same error so the login
	// endpoint cannot be used for user enumeration.
	_, err = svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_LoginStampFailureIsBestEffort(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123", "")
	require.NoError(t, err)

	repo.updateErr = assert.AnError
	result, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err, "a failed last-login stamp must not fail the login")
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, 1, repo.updated)
}
