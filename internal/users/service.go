package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/database"
	"github.com/wiktoriasw/Invitations/pkg/metrics"
	"github.com/wiktoriasw/Invitations/pkg/utils"
)

var (
	ErrEmailTaken   error = apperr.New(apperr.ErrConflict, "email already registered")
	ErrUserNotFound error = apperr.New(apperr.ErrNotFound, "user not found")
	ErrOwnRole      error = apperr.New(apperr.ErrForbidden, "admin cannot change their own role")
	ErrAdminSelf    error = apperr.New(apperr.ErrForbidden, "admin cannot delete their own account")
	ErrInvalidRole  error = apperr.New(apperr.ErrValidation, "invalid role")
	ErrInvalidInput error = apperr.New(apperr.ErrValidation, "email and password are required")
)

// Store is the user persistence administration needs.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUUID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]models.User, error)
	CreateUser(ctx context.Context, email, passwordHash string, role models.Role) (*models.User, error)
	UpdateRole(ctx context.Context, userID int64, role models.Role) error
	DeleteUserCascade(ctx context.Context, userID int64) ([]string, error)
}

// PhotoRemover deletes stored event background photos.
type PhotoRemover interface {
	DeletePhoto(ctx context.Context, key string) error
}

// Service implements registration and account administration.
type Service struct {
	store  Store
	photos PhotoRemover
	logger *zap.Logger
}

// NewService creates a user service. photos may be nil.
func NewService(store Store, photos PhotoRemover, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, photos: photos, logger: logger}
}

// Create registers an account with the user role.
func (s *Service) Create(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, email, hash, models.RoleUser)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_uuid", user.UUID.String()))
	return user, nil
}

// List returns a page of users.
func (s *Service) List(ctx context.Context, skip, limit int) ([]models.User, error) {
	list, err := s.store.ListUsers(ctx, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return list, nil
}

// Get returns one user by uuid.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByUUID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangeRole sets target's role. The acting admin cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, actor *models.User, target uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actor.UUID == target {
		return nil, ErrOwnRole
	}
	user, err := s.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateRole(ctx, user.ID, role); err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.logger.Info("role changed",
		zap.String("actor_uuid", actor.UUID.String()),
		zap.String("user_uuid", user.UUID.String()),
		zap.String("role", string(role)),
	)
	user.Role = role
	return user, nil
}

// Delete removes target and everything it organizes. Users may delete themselves;
// admins may delete anyone but themselves. Other targets are reported as not found.
func (s *Service) Delete(ctx context.Context, actor *models.User, target uuid.UUID) (*models.User, error) {
	self := actor.UUID == target
	if self && actor.IsAdmin() {
		return nil, ErrAdminSelf
	}
	if !self && !actor.IsAdmin() {
		return nil, ErrUserNotFound
	}
	user, err := s.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	photos, err := s.store.DeleteUserCascade(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	metrics.CascadeDeletesTotal.WithLabelValues("user").Inc()
	s.logger.Info("user deleted",
		zap.String("actor_uuid", actor.UUID.String()),
		zap.String("user_uuid", user.UUID.String()),
		zap.Int("photos", len(photos)),
	)
	s.removePhotos(ctx, photos)
	return user, nil
}

func (s *Service) removePhotos(ctx context.Context, keys []string) {
	if s.photos == nil {
		return
	}
	for _, key := range keys {
		if err := s.photos.DeletePhoto(ctx, key); err != nil {
			s.logger.Warn("delete background photo failed", zap.String("key", key), zap.Error(err))
		}
	}
}
