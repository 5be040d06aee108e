package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wiktoriasw/Invitations/internal/apperr"
	"github.com/wiktoriasw/Invitations/internal/models"
	"github.com/wiktoriasw/Invitations/pkg/utils"
)

var (
	ErrBadCredentials error = apperr.New(apperr.ErrUnauthenticated, "incorrect username or password")
	ErrNotAuthorized  error = apperr.New(apperr.ErrUnauthenticated, "could not validate credentials")
	ErrWrongPassword  error = apperr.New(apperr.ErrValidation, "wrong password")
	ErrTokenNotFound  error = apperr.New(apperr.ErrNotFound, "token not exist")
	ErrTokenExpired   error = apperr.New(apperr.ErrExpired, "token expired")
	ErrTokenConsumed        = ErrTokenNotFound
	ErrUserGone       error = apperr.New(apperr.ErrNotFound, "user not found")
)

// UserStore is the persistence the credential service needs.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
	CreateResetToken(ctx context.Context, t *models.ResetPasswordToken) error
	GetResetToken(ctx context.Context, token string) (*models.ResetPasswordToken, error)
	RedeemResetToken(ctx context.Context, token string, userID int64, passwordHash string) error
}

// ResetNotifier delivers a freshly issued reset token to its owner.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, email, token string, expires time.Time) error
}

// Service implements password verification, bearer tokens and the reset-token lifecycle.
type Service struct {
	store    UserStore
	jwt      *JWTService
	resetTTL time.Duration
	notifier ResetNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates the credential service. notifier may be nil.
func NewService(store UserStore, jwt *JWTService, resetTTL time.Duration, notifier ResetNotifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, jwt: jwt, resetTTL: resetTTL, notifier: notifier, logger: logger, now: time.Now}
}

// Authenticate checks credentials and issues a bearer token.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("get user: %w", err)
	}
	if user == nil || !utils.CheckPassword(password, user.PasswordHash) {
		return nil, "", ErrBadCredentials
	}
	token, err := s.jwt.Generate(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// ResolvePrincipal validates a bearer token and loads its subject.
// Malformed, expired or unknown-subject tokens all yield ErrNotAuthorized.
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, ErrNotAuthorized
	}
	user, err := s.store.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil || user.ID != claims.UserID {
		return nil, ErrNotAuthorized
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *Service) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) (*models.User, error) {
	current, err := s.store.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if current == nil {
		return nil, ErrUserGone
	}
	if !utils.CheckPassword(oldPassword, current.PasswordHash) {
		return nil, ErrWrongPassword
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, apperr.New(apperr.ErrValidation, "invalid new password")
	}
	if err := s.store.UpdatePassword(ctx, current.ID, hash); err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	current.PasswordHash = hash
	return current, nil
}

// ForgotPassword issues a reset token for email when the account exists.
// Unknown emails succeed silently so the endpoint cannot be used to enumerate accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil
	}
	_, err = s.IssueResetToken(ctx, user)
	return err
}

// IssueResetToken stores a new token valid for the configured window and hands it to the notifier.
func (s *Service) IssueResetToken(ctx context.Context, user *models.User) (*models.ResetPasswordToken, error) {
	raw, err := generateResetToken()
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	tok := &models.ResetPasswordToken{
		Token:      raw,
		UserID:     user.ID,
		ExpireTime: s.now().Add(s.resetTTL),
	}
	if err := s.store.CreateResetToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("create reset token: %w", err)
	}
	s.logger.Info("reset token issued", zap.String("user_uuid", user.UUID.String()), zap.Time("expires", tok.ExpireTime))

	if s.notifier != nil {
		if err := s.notifier.NotifyPasswordReset(ctx, user.Email, tok.Token, tok.ExpireTime); err != nil {
			s.logger.Error("reset notification failed", zap.String("user_uuid", user.UUID.String()), zap.Error(err))
		}
	}
	return tok, nil
}

// RedeemResetToken sets a new password and consumes the token. It succeeds at most once per token.
func (s *Service) RedeemResetToken(ctx context.Context, token, newPassword string) (*models.User, error) {
	tok, err := s.store.GetResetToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("get reset token: %w", err)
	}
	if tok == nil {
		return nil, ErrTokenNotFound
	}
	if tok.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, apperr.New(apperr.ErrValidation, "invalid new password")
	}
	if err := s.store.RedeemResetToken(ctx, tok.Token, tok.UserID, hash); err != nil {
		if errors.Is(err, ErrTokenConsumed) {
			return nil, err
		}
		return nil, fmt.Errorf("redeem reset token: %w", err)
	}
	user, err := s.store.GetUserByID(ctx, tok.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, ErrUserGone
	}
	return user, nil
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
