package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/repository"
	"github.com/iliyamo/estate-listings/internal/utils"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// UserStore is the persistence needed by CredentialService.
type UserStore interface {
	Create(ctx context.Context, email, passwordHash string, name *string, role string) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	SetActive(ctx context.Context, email string, active bool) error
}

// CredentialService owns registration, authentication and token issuance.
// Password policy and email normalization live here only.
type CredentialService struct {
	users   UserStore
	signer  *utils.TokenSigner
	pw      utils.Passwords
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time
}

// NewCredentialService wires the service.  log may be nil.
func NewCredentialService(users UserStore, signer *utils.TokenSigner, bcryptCost int, timeout time.Duration, log *zap.Logger) *CredentialService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialService{
		users:   users,
		signer:  signer,
		pw:      utils.NewPasswords(bcryptCost),
		timeout: timeout,
		log:     log.Named("credentials"),
		now:     time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePassword enforces 8 to 72 bytes with at least one upper-case
// letter, one lower-case letter and one digit.
func ValidatePassword(pw string) error {
	if len(pw) < 8 {
		return apperr.Validation("Password must be at least 8 characters")
	}
	if len(pw) > utils.MaxPasswordBytes {
		return apperr.Validation("Password must be at most %d bytes", utils.MaxPasswordBytes)
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r) && r <= '9':
			digit = true
		}
	}
	if !upper {
		return apperr.Validation("Password must contain at least one uppercase letter")
	}
	if !lower {
		return apperr.Validation("Password must contain at least one lowercase letter")
	}
	if !digit {
		return apperr.Validation("Password must contain at least one number")
	}
	return nil
}

// Register creates an active account with role "user".
func (s *CredentialService) Register(ctx context.Context, email, password string, name *string) (model.User, error) {
	email = normalizeEmail(email)
	if !ValidEmail(email) {
		return model.User{}, apperr.Validation("Invalid email format")
	}
	if err := ValidatePassword(password); err != nil {
		return model.User{}, err
	}
	hash, err := s.pw.Hash(password)
	if err != nil {
		return model.User{}, apperr.Storage(err, "hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// The unique index decides duplicates so concurrent registrations of
	// the same address cannot both succeed.
	id, err := s.users.Create(ctx, email, hash, name, model.RoleUser)
	if errors.Is(err, repository.ErrEmailExists) {
		s.log.Warn("registration attempt with existing email", zap.String("email", email))
		return model.User{}, apperr.Conflict("Email already registered")
	}
	if err != nil {
		return model.User{}, apperr.Storage(err, "create user")
	}
	s.log.Info("user registered", zap.Uint64("user_id", id))
	return model.User{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// Authenticate checks credentials and records the login time.
func (s *CredentialService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	email = normalizeEmail(email)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.log.Warn("login attempt with unknown email", zap.String("email", email))
		return model.User{}, apperr.Auth("invalid credentials")
	}
	if err != nil {
		return model.User{}, apperr.Storage(err, "load user")
	}
	if !u.IsActive {
		s.log.Warn("login attempt with inactive user", zap.Uint64("user_id", u.ID))
		return model.User{}, apperr.Auth("account inactive")
	}
	if !s.pw.Match(u.PasswordHash, password) {
		s.log.Warn("invalid password attempt", zap.Uint64("user_id", u.ID))
		return model.User{}, apperr.Auth("invalid credentials")
	}

	at := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, u.ID, at); err != nil {
		return model.User{}, apperr.Storage(err, "update last_login")
	}
	u.LastLogin = &at
	return u, nil
}

// IssueToken signs a one-hour session token for u.
func (s *CredentialService) IssueToken(u model.User) (utils.SessionToken, error) {
	tok, err := s.signer.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return utils.SessionToken{}, apperr.Storage(err, "sign token")
	}
	return tok, nil
}

// Deactivate blocks future logins for email.  Tokens already issued stay
// valid until they expire.
func (s *CredentialService) Deactivate(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.users.SetActive(ctx, normalizeEmail(email), false)
	if errors.Is(err, repository.ErrUserNotFound) {
		return apperr.NotFound("user not found")
	}
	if err != nil {
		return apperr.Storage(err, "deactivate user")
	}
	return nil
}
