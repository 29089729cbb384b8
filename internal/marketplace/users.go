package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/philippspitzley/auctioneer/internal/auth"
	"github.com/philippspitzley/auctioneer/internal/biddingerrors"
	"github.com/philippspitzley/auctioneer/internal/models"
	"github.com/philippspitzley/auctioneer/internal/repository"
	"github.com/philippspitzley/auctioneer/utils"
)

// NewUser is the input for registration and admin-created accounts
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     models.Role
}

// UserUpdate changes the non-nil fields only
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Role     *models.Role
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterUser creates a regular account and sends the confirmation email
func (s *MarketplaceService) RegisterUser(ctx context.Context, in NewUser) (models.User, error) {
	in.Role = models.RoleUser
	user, err := s.createUser(ctx, in)
	if err != nil {
		return models.User{}, err
	}

	if err := s.registrar.Registered(ctx, user); err != nil {
		utils.Error("Failed to queue registration email", map[string]any{
			"user_id": user.UserID,
			"error":   err.Error(),
		})
	}
	return user, nil
}

// CreateUser lets an admin create an account with any role
func (s *MarketplaceService) CreateUser(ctx context.Context, actor models.Identity, in NewUser) (models.User, error) {
	if !actor.IsAdmin {
		return models.User{}, fmt.Errorf("service: %w - only admins can create users", biddingerrors.ErrForbidden)
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	return s.createUser(ctx, in)
}

func (s *MarketplaceService) createUser(ctx context.Context, in NewUser) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
	if in.Username == "" || in.Email == "" {
		return models.User{}, fmt.Errorf("service: %w - username and email are required", biddingerrors.ErrInvalidUser)
	}
	if !in.Role.Valid() {
		return models.User{}, fmt.Errorf("service: %w - unknown role %q", biddingerrors.ErrInvalidUser, in.Role)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("service: %w", err)
	}

	now := s.clock()
	user := models.User{
		UserID:       utils.GenerateID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to create user %s: %w", in.Email, err)
	}

	utils.Info("User created", map[string]any{"user_id": user.UserID, "role": user.Role})
	return user, nil
}

// Authenticate returns the user whose email and password match
func (s *MarketplaceService) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, biddingerrors.ErrUserNotFound) {
			return models.User{}, fmt.Errorf("service: %w - invalid credentials", biddingerrors.ErrUnauthorized)
		}
		return models.User{}, fmt.Errorf("service: failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return models.User{}, fmt.Errorf("service: %w - invalid credentials", biddingerrors.ErrUnauthorized)
	}
	return user, nil
}

// EnsureAdmin creates the admin account unless a user with that email already exists
func (s *MarketplaceService) EnsureAdmin(ctx context.Context, username, email, password string) (models.User, bool, error) {
	existing, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, biddingerrors.ErrUserNotFound) {
		return models.User{}, false, fmt.Errorf("service: failed to look up admin: %w", err)
	}

	admin, err := s.createUser(ctx, NewUser{Username: username, Email: email, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return models.User{}, false, err
	}
	return admin, true, nil
}

func (s *MarketplaceService) GetUser(ctx context.Context, userID string) (models.User, error) {
	if userID == "" {
		return models.User{}, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidUser)
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("service: failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *MarketplaceService) ListUsers(ctx context.Context, q repository.UserQuery) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("service: failed to list users: %w", err)
	}
	return users, nil
}

// UpdateUser applies upd to the user. Users may edit themselves; only admins may change roles.
func (s *MarketplaceService) UpdateUser(ctx context.Context, actor models.Identity, userID string, upd UserUpdate) (models.User, error) {
	if !actor.Owns(userID) {
		return models.User{}, fmt.Errorf("service: %w - cannot edit user %s", biddingerrors.ErrForbidden, userID)
	}
	if upd.Role != nil && !actor.IsAdmin {
		return models.User{}, fmt.Errorf("service: %w - only admins can change roles", biddingerrors.ErrForbidden)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}

	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" {
			return models.User{}, fmt.Errorf("service: %w - empty username", biddingerrors.ErrInvalidUser)
		}
		user.Username = name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if email == "" {
			return models.User{}, fmt.Errorf("service: %w - empty email", biddingerrors.ErrInvalidUser)
		}
		user.Email = email
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password)
		if err != nil {
			return models.User{}, fmt.Errorf("service: %w", err)
		}
		user.PasswordHash = hash
	}
	if upd.Role != nil {
		if !upd.Role.Valid() {
			return models.User{}, fmt.Errorf("service: %w - unknown role %q", biddingerrors.ErrInvalidUser, *upd.Role)
		}
		user.Role = *upd.Role
	}
	user.UpdatedAt = s.clock()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("service: failed to update user %s: %w", userID, err)
	}
	return user, nil
}

func (s *MarketplaceService) DeleteUser(ctx context.Context, actor models.Identity, userID string) error {
	if !actor.IsAdmin {
		return fmt.Errorf("service: %w - only admins can delete users", biddingerrors.ErrForbidden)
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("service: failed to delete user %s: %w", userID, err)
	}
	utils.Info("User deleted", map[string]any{"user_id": userID})
	return nil
}
