package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/skill-swap/internal/models"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetRole(ctx context.Context, id string, role models.Role) error
}

// Versions tracks the current token version per user.
type Versions interface {
	Current(ctx context.Context, userID string) (int64, error)
	Bump(ctx context.Context, userID string) (int64, error)
}

// AdminCredentials is the configured administrator login. The admin account
// is created on its first successful login.
type AdminCredentials struct {
	Email    string
	Password string
}

// Enabled reports whether an admin login is configured.
func (a AdminCredentials) Enabled() bool {
	return a.Email != "" && a.Password != ""
}

// Options configures a Service.
type Options struct {
	JWTSecret  string
	TokenTTL   time.Duration
	BcryptCost int
	Admin      AdminCredentials
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *models.User
	Token string
}

// Service handles registration, login and bearer token checks.
type Service struct {
	users    UserStore
	versions Versions
	secret   []byte
	ttl      time.Duration
	cost     int
	admin    AdminCredentials
	now      func() time.Time
}

func NewService(users UserStore, versions Versions, opts Options) *Service {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = DefaultTokenTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:    users,
		versions: versions,
		secret:   []byte(opts.JWTSecret),
		ttl:      opts.TokenTTL,
		cost:     opts.BcryptCost,
		admin:    opts.Admin,
		now:      time.Now,
	}
}

// Register creates a regular user account.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if s.admin.Enabled() && strings.EqualFold(email, s.admin.Email) {
		return nil, models.ErrReservedEmail
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(hash),
		ProfilePhoto: models.PlaceholderPhoto(req.Name, "8b5cf6"),
		Availability: models.AvailabilityWeekends,
		IsPublic:     true,
		Role:         models.RoleUser,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	slog.InfoContext(ctx, "user registered", "user_id", u.ID)

	return s.issue(ctx, u)
}

// Login checks credentials. The configured admin credentials always
// succeed and provision the admin account on first use.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, models.ErrInvalidCredentials
	}

	if s.isAdminLogin(email, req.Password) {
		admin, err := s.ensureAdmin(ctx)
		if err != nil {
			return nil, fmt.Errorf("admin setup: %w", err)
		}
		return s.issue(ctx, admin)
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	if u.IsBanned {
		return nil, models.ErrBanned
	}

	return s.issue(ctx, u)
}

// Logout revokes every token the user holds.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if _, err := s.versions.Bump(ctx, userID); err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return nil
}

// Me returns the caller's user record.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user: %w", err)
	}
	return u, nil
}

// Authenticate validates a bearer token and resolves the caller. Tokens of
// deleted users, revoked tokens and banned users are refused.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	c, err := s.parse(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: not authorized, token failed", models.ErrUnauthorized)
	}

	u, err := s.users.GetUserByID(ctx, c.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return Identity{}, fmt.Errorf("%w: not authorized, user not found", models.ErrUnauthorized)
		}
		return Identity{}, fmt.Errorf("get user: %w", err)
	}

	// Banning also revokes tokens; report the ban rather than the revocation.
	if u.IsBanned {
		return Identity{}, models.ErrBanned
	}
	current, err := s.versions.Current(ctx, u.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("token version: %w", err)
	}
	if c.Version != current {
		return Identity{}, fmt.Errorf("%w: not authorized, token revoked", models.ErrUnauthorized)
	}

	return Identity{UserID: u.ID, Role: u.Role}, nil
}

func (s *Service) isAdminLogin(email, password string) bool {
	if !s.admin.Enabled() || !strings.EqualFold(email, s.admin.Email) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(s.admin.Password)) == 1
}

func (s *Service) ensureAdmin(ctx context.Context) (*models.User, error) {
	email := strings.ToLower(s.admin.Email)
	u, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return s.promote(ctx, u)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.admin.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u = &models.User{
		Name:         "Admin",
		Email:        email,
		PasswordHash: string(hash),
		ProfilePhoto: models.PlaceholderPhoto("A", "10b981"),
		Availability: models.AvailabilityWeekends,
		IsPublic:     true,
		Role:         models.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, models.ErrDuplicateEmail) {
			// A concurrent first login won.
			return s.users.GetUserByEmail(ctx, email)
		}
		return nil, err
	}
	slog.InfoContext(ctx, "admin account provisioned", "user_id", u.ID)
	return u, nil
}

// promote gives the admin role to an account that was registered under the
// admin email before it was configured.
func (s *Service) promote(ctx context.Context, u *models.User) (*models.User, error) {
	if u.Role == models.RoleAdmin {
		return u, nil
	}
	if err := s.users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("promote admin: %w", err)
	}
	slog.WarnContext(ctx, "existing account promoted to admin", "user_id", u.ID)
	u.Role = models.RoleAdmin
	return u, nil
}

type claims struct {
	Version int64 `json:"ver"`
	jwt.RegisteredClaims
}

func (s *Service) issue(ctx context.Context, u *models.User) (*Session, error) {
	version, err := s.versions.Current(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("token version: %w", err)
	}

	now := s.now()
	c := claims{
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: u, Token: token}, nil
}

func (s *Service) parse(token string) (*claims, error) {
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || c.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}
