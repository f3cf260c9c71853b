package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go-pharmacy-catalog/internal/event"
	"go-pharmacy-catalog/internal/model"
	"go-pharmacy-catalog/pkg/apierror"
)

// UserStore persists credentials. Create must report a taken username as
// model.ErrDuplicateUsername, atomically with the insert.
type UserStore interface {
	Create(ctx context.Context, u model.User) error
	FindByUsernameAndRole(ctx context.Context, username string, role model.Role) (model.User, error)
}

type AuthOptions struct {
	BcryptCost  int
	SignupRoles []string
	EventBus    event.Bus
}

type AuthService struct {
	users       UserStore
	tokens      *TokenService
	cost        int
	signupRoles map[model.Role]struct{}
	bus         event.Bus
	dummyHash   []byte
	now         func() time.Time
}

func NewAuthService(users UserStore, tokens *TokenService, opts AuthOptions) (*AuthService, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("auth service needs a user store and a token service")
	}

	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}

	roles := map[model.Role]struct{}{}
	for _, raw := range opts.SignupRoles {
		role, ok := model.ParseRole(raw)
		if !ok {
			return nil, fmt.Errorf("unknown signup role %q", raw)
		}
		roles[role] = struct{}{}
	}
	if len(roles) == 0 {
		roles[model.RoleAdmin] = struct{}{}
		roles[model.RoleCustomer] = struct{}{}
	}

	// Compared against when no user matches a login, so an unknown username
	// costs as much as a wrong password.
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("dummy:"+uuid.NewString()), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:       users,
		tokens:      tokens,
		cost:        cost,
		signupRoles: roles,
		bus:         opts.EventBus,
		dummyHash:   dummyHash,
		now:         time.Now,
	}, nil
}

func (s *AuthService) Signup(ctx context.Context, username string, password string, rawRole string) (model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return model.User{}, validationError("username and password are required", "")
	}

	role, ok := model.ParseRole(rawRole)
	if !ok {
		return model.User{}, validationError("role must be admin or customer", "role")
	}
	if _, allowed := s.signupRoles[role]; !allowed {
		return model.User{}, validationError("role is not open for signup", string(role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return model.User{}, validationError("password must be at most 72 bytes", "password")
	}
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			return model.User{}, apierror.Wrap(model.ErrDuplicateUsername, "DUPLICATE_USERNAME", "Username already exists", username, http.StatusBadRequest)
		}
		return model.User{}, err
	}

	slog.Info("user signed up", "user_id", user.ID, "role", user.Role)
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeUserSignedUp, user.ID, map[string]any{
			"userId":   user.ID,
			"username": user.Username,
			"role":     user.Role,
		}, user.ID))
	}

	return user, nil
}

// Login authenticates username+password for the claimed role. The role is
// part of the lookup key: an account created as customer cannot log in as
// admin. Every mismatch yields the same invalid-credentials error.
func (s *AuthService) Login(ctx context.Context, username string, password string, rawRole string) (model.IssuedToken, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || strings.TrimSpace(rawRole) == "" {
		return model.IssuedToken{}, validationError("username, password and role are required", "")
	}

	role, ok := model.ParseRole(rawRole)
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.IssuedToken{}, invalidCredentials()
	}

	user, err := s.users.FindByUsernameAndRole(ctx, username, role)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return model.IssuedToken{}, invalidCredentials()
	}
	if err != nil {
		return model.IssuedToken{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return model.IssuedToken{}, invalidCredentials()
	}

	issued, err := s.tokens.Issue(user)
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	return issued, nil
}

func validationError(message string, details string) error {
	return apierror.Wrap(model.ErrValidation, "VALIDATION_ERROR", message, details, http.StatusBadRequest)
}

func invalidCredentials() error {
	return apierror.Wrap(model.ErrInvalidCredentials, "INVALID_CREDENTIALS", "Invalid username or password", "", http.StatusBadRequest)
}
