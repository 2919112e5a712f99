package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/repository"
	"github.com/iliyamo/estate-listings/internal/utils"
)

type memUsers struct {
	byEmail map[string]model.User
	nextID  uint64
	touched map[uint64]time.Time
	failGet error
}

func newMemUsers() *memUsers {
	return &memUsers{byEmail: map[string]model.User{}, touched: map[uint64]time.Time{}}
}

func (m *memUsers) Create(_ context.Context, email, hash string, name *string, role string) (uint64, error) {
	if _, ok := m.byEmail[email]; ok {
		return 0, repository.ErrEmailExists
	}
	m.nextID++
	m.byEmail[email] = model.User{ID: m.nextID, Email: email, PasswordHash: hash, Name: name, Role: role, IsActive: true}
	return m.nextID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	if m.failGet != nil {
		return model.User{}, m.failGet
	}
	u, ok := m.byEmail[email]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memUsers) TouchLastLogin(_ context.Context, id uint64, at time.Time) error {
	m.touched[id] = at
	return nil
}

func (m *memUsers) SetActive(_ context.Context, email string, active bool) error {
	u, ok := m.byEmail[email]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.IsActive = active
	m.byEmail[email] = u
	return nil
}

func newTestCredentials(users UserStore) *CredentialService {
	// bcrypt.MinCost keeps the suite fast.
	return NewCredentialService(users, utils.NewTokenSigner("secret", time.Hour, nil), 4, time.Second, nil)
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name string
		pw   string
		msg  string
	}{
		{"abcdefg", "abcdefg", "Password must be at least 8 characters"},
		{"abcdefgh", "abcdefgh", "Password must contain at least one uppercase letter"},
		{"ABCDEFG1", "ABCDEFG1", "Password must contain at least one lowercase letter"},
		{"Abcdefgh", "Abcdefgh", "Password must contain at least one number"},
		{"Abcdefg1", "Abcdefg1", ""},
		{"72 bytes", "Abcdefg1" + strings.Repeat("x", 64), ""},
		{"73 bytes", "Abcdefg1" + strings.Repeat("x", 65), "Password must be at most 72 bytes"},
		{"multibyte over limit", "Abcdefg1" + strings.Repeat("é", 33), "Password must be at most 72 bytes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.pw)
			if tc.msg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.CodeValidation))
			assert.Equal(t, tc.msg, apperr.Message(err))
		})
	}
}

func TestRegister_RejectsOverlongPassword(t *testing.T) {
	users := newMemUsers()
	svc := newTestCredentials(users)

	_, err := svc.Register(context.Background(), "long@example.com", "Abcdefg1"+strings.Repeat("x", 72), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.Equal(t, "Password must be at most 72 bytes", apperr.Message(err))
	assert.Empty(t, users.byEmail)

	_, err = svc.Register(context.Background(), "long@example.com", "Abcdefg1"+strings.Repeat("x", 64), nil)
	require.NoError(t, err)
}

func TestRegister_RejectsBadEmail(t *testing.T) {
	svc := newTestCredentials(newMemUsers())
	for _, email := range []string{"", "plain", "a@b", "a b@c.de", "@c.de", "a@.de@x"} {
		_, err := svc.Register(context.Background(), email, "Abcdefg1", nil)
		assert.True(t, apperr.Is(err, apperr.CodeValidation), email)
	}
}

func TestRegister_DuplicateIsCaseInsensitive(t *testing.T) {
	users := newMemUsers()
	svc := newTestCredentials(users)

	u, err := svc.Register(context.Background(), "Ann@Example.com", "Abcdefg1", nil)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, model.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.NotEqual(t, "Abcdefg1", users.byEmail["ann@example.com"].PasswordHash)

	_, err = svc.Register(context.Background(), "ANN@example.COM", "Xyzxyzx9", nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	assert.Equal(t, "Email already registered", apperr.Message(err))
}

func TestAuthenticate_RoundTrip(t *testing.T) {
	users := newMemUsers()
	svc := newTestCredentials(users)
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	reg, err := svc.Register(context.Background(), "bob@example.com", "Abcdefg1", nil)
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), " BOB@example.com", "Abcdefg1")
	require.NoError(t, err)
	assert.Equal(t, reg.ID, u.ID)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, fixed, *u.LastLogin)
	assert.Equal(t, fixed, users.touched[u.ID])

	_, err = svc.Authenticate(context.Background(), "bob@example.com", "Abcdefg2")
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
	assert.Equal(t, "invalid credentials", apperr.Message(err))

	_, err = svc.Authenticate(context.Background(), "nobody@example.com", "Abcdefg1")
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
	assert.Equal(t, "invalid credentials", apperr.Message(err))
}

func TestAuthenticate_Deactivated(t *testing.T) {
	users := newMemUsers()
	svc := newTestCredentials(users)
	_, err := svc.Register(context.Background(), "cy@example.com", "Abcdefg1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), "CY@example.com"))

	_, err = svc.Authenticate(context.Background(), "cy@example.com", "Abcdefg1")
	assert.True(t, apperr.Is(err, apperr.CodeAuth))
	assert.Equal(t, "account inactive", apperr.Message(err))
	assert.Empty(t, users.touched)
}

func TestDeactivate_Unknown(t *testing.T) {
	err := newTestCredentials(newMemUsers()).Deactivate(context.Background(), "ghost@example.com")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	users := newMemUsers()
	users.failGet = errors.New("connection refused")

	_, err := newTestCredentials(users).Authenticate(context.Background(), "a@b.co", "Abcdefg1")
	assert.True(t, apperr.Is(err, apperr.CodeStorage))
	assert.Equal(t, 500, apperr.Status(err))
}

func TestIssueToken(t *testing.T) {
	svc := newTestCredentials(newMemUsers())
	tok, err := svc.IssueToken(model.User{ID: 7, Email: "d@e.fg", Role: model.RoleAdmin})
	require.NoError(t, err)

	claims, err := svc.signer.Verify(tok.Token)
	require.NoError(t, err)
	assert.Equal(t, "7", claims.Subject)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, time.Hour, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}
