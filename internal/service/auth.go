// Package service contains the panel's business logic. Services depend on
// small interfaces declared here and implemented by the repository,
// security and blob packages.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/DanielTwine/dloperOS/internal/apperr"
	"github.com/DanielTwine/dloperOS/internal/models"
	"github.com/DanielTwine/dloperOS/internal/security"
	"github.com/DanielTwine/dloperOS/internal/validate"
)

// Seed credentials written when users.yaml is empty at startup.
const (
	SeedUsername = "admin"
	SeedPassword = "admin123"
	SeedEmail    = "admin@example.com"
)

var (
	ErrInvalidCredentials = apperr.New(apperr.ErrUnauthenticated, "Invalid credentials")
	ErrNotAuthenticated   = apperr.New(apperr.ErrUnauthenticated, "Not authenticated")
	ErrUnknownUser        = apperr.New(apperr.ErrUnauthenticated, "User not found")
	ErrInsufficientRole   = apperr.New(apperr.ErrForbidden, "Insufficient permissions")
	ErrDeleteSelf         = apperr.New(apperr.ErrValidation, "Cannot delete yourself")
)

// UserRepository defines the identity persistence the auth service needs.
type UserRepository interface {
	List(ctx context.Context) ([]models.User, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, u models.User) error
	CreateIfEmpty(ctx context.Context, u models.User) (bool, error)
	Update(ctx context.Context, username string, fn func(*models.User) error) (*models.User, error)
	Delete(ctx context.Context, username string) (bool, error)
}

// TokenManager issues and verifies session tokens.
type TokenManager interface {
	Issue(subject string, role models.Role, ttl time.Duration) (string, error)
	Verify(token string) (*security.Claims, error)
}

// NewUser is the input for registration and admin user creation.
type NewUser struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// UserPatch carries optional changes to an identity.
type UserPatch struct {
	Email    *string      `json:"email"`
	Role     *models.Role `json:"role"`
	Password *string      `json:"password"`
}

// AuthService implements login, the access gate and identity management.
type AuthService struct {
	users  UserRepository
	tokens TokenManager
	log    *zap.Logger
	now    func() time.Time
	hash   func(string) (string, error)
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserRepository, tokens TokenManager, log *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		log:    log,
		now:    time.Now,
		hash:   security.HashPassword,
	}
}

// WithHasher replaces the password hash function. Tests use it to lower
// the PBKDF2 cost.
func (s *AuthService) WithHasher(hash func(string) (string, error)) *AuthService {
	s.hash = hash
	return s
}

// Login verifies a username and password and returns a signed token.
// Unknown users and wrong passwords fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.Get(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Warn("login failed", zap.String("username", username), zap.String("reason", "unknown user"))
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !security.VerifyPassword(password, u.PasswordHash) {
		s.log.Warn("login failed", zap.String("username", username), zap.String("reason", "bad password"))
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(u.Username, u.Role, 0)
}

// Authenticate resolves a bearer token to a stored identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Authorize is the allow-list check used by the role middleware.
func Authorize(u *models.User, allowed ...models.Role) error {
	if u == nil {
		return ErrNotAuthenticated
	}
	for _, r := range allowed {
		if u.Role == r {
			return nil
		}
	}
	return ErrInsufficientRole
}

// Register creates an identity. Without a caller it only succeeds while no
// identities exist; the emptiness check and the insert share one lock.
// Otherwise caller must be an owner or admin.
func (s *AuthService) Register(ctx context.Context, caller *models.User, req NewUser) (*models.User, error) {
	if caller != nil {
		if err := Authorize(caller, models.RoleOwner, models.RoleAdmin); err != nil {
			return nil, err
		}
		return s.CreateUser(ctx, req)
	}

	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, ErrInsufficientRole
	}
	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	created, err := s.users.CreateIfEmpty(ctx, *u)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, ErrInsufficientRole
	}
	s.log.Info("first user registered", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

// CreateUser validates and stores a new identity. Role defaults to viewer.
func (s *AuthService) CreateUser(ctx context.Context, req NewUser) (*models.User, error) {
	u, err := s.newUser(req)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, *u); err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *AuthService) newUser(req NewUser) (*models.User, error) {
	if req.Role == "" {
		req.Role = models.RoleViewer
	}
	if err := validateNewUser(req); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Username:     req.Username,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}, nil
}

func validateNewUser(req NewUser) error {
	if err := validate.Username(req.Username); err != nil {
		return err
	}
	if err := validate.Email(req.Email); err != nil {
		return err
	}
	if err := validate.Password(req.Password); err != nil {
		return err
	}
	if !req.Role.Valid() {
		return apperr.New(apperr.ErrValidation, "Unknown role")
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// UpdateUser changes email, role or password. A new password is hashed
// before the users lock is taken.
func (s *AuthService) UpdateUser(ctx context.Context, username string, p UserPatch) (*models.User, error) {
	if p.Email != nil {
		if err := validate.Email(*p.Email); err != nil {
			return nil, err
		}
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, apperr.New(apperr.ErrValidation, "Unknown role")
	}
	var hash string
	if p.Password != nil && *p.Password != "" {
		h, err := s.hash(*p.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	return s.users.Update(ctx, username, func(u *models.User) error {
		if p.Email != nil {
			u.Email = *p.Email
		}
		if p.Role != nil {
			u.Role = *p.Role
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return nil
	})
}

// SetPassword replaces a user's password. Used by the reset-password
// command.
func (s *AuthService) SetPassword(ctx context.Context, username, password string) error {
	if err := validate.Password(password); err != nil {
		return err
	}
	_, err := s.UpdateUser(ctx, username, UserPatch{Password: &password})
	return err
}

// CheckPassword confirms that password belongs to username.
func (s *AuthService) CheckPassword(ctx context.Context, username, password string) error {
	u, err := s.users.Get(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return err
	}
	if !security.VerifyPassword(password, u.PasswordHash) {
		return ErrInvalidCredentials
	}
	return nil
}

// DeleteUser removes username. Callers cannot remove themselves.
func (s *AuthService) DeleteUser(ctx context.Context, caller *models.User, username string) error {
	if caller != nil && caller.Username == username {
		return ErrDeleteSelf
	}
	removed, err := s.users.Delete(ctx, username)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.New(apperr.ErrNotFound, "User not found")
	}
	s.log.Info("user deleted", zap.String("username", username))
	return nil
}

// EnsureSeedUser creates the default owner when no identities exist and
// reports whether it did.
func (s *AuthService) EnsureSeedUser(ctx context.Context) (bool, error) {
	n, err := s.users.Count(ctx)
	if err != nil || n > 0 {
		return false, err
	}
	hash, err := s.hash(SeedPassword)
	if err != nil {
		return false, err
	}
	created, err := s.users.CreateIfEmpty(ctx, models.User{
		Username:     SeedUsername,
		Email:        SeedEmail,
		Role:         models.RoleOwner,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Warn("created default owner account; change its password",
			zap.String("username", SeedUsername))
	}
	return created, nil
}
