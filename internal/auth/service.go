// Package auth implements the session service: one-time login codes, signed
// session tokens, and sign-out.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/linkshelf/internal/apperr"
	"github.com/starford/linkshelf/internal/checksum"
	"github.com/starford/linkshelf/internal/logger"
	"github.com/starford/linkshelf/internal/models"
	"github.com/starford/linkshelf/internal/session"
)

// Accounts is the user and login-code storage the service needs.
type Accounts interface {
	EnsureUser(ctx context.Context, email string) (*models.User, error)
	User(ctx context.Context, id string) (*models.User, error)
	CreateLoginCode(ctx context.Context, codeHash, userID string, expiresAt time.Time) error
	ConsumeLoginCode(ctx context.Context, codeHash string, now time.Time) (string, error)
}

// Options configures a Service.
type Options struct {
	Secret     []byte
	SessionTTL time.Duration
	CodeTTL    time.Duration
}

// Service issues and validates sessions.
type Service struct {
	accounts Accounts
	sessions session.Store
	opts     Options
	log      logger.Logger
	now      func() time.Time

	revokeHooks []func(sessionID string)
}

// NewService creates a session service.
func NewService(accounts Accounts, sessions session.Store, opts Options, log logger.Logger) *Service {
	return &Service{
		accounts: accounts,
		sessions: sessions,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// LoginCode is a freshly issued one-time code.
type LoginCode struct {
	Code      string
	User      *models.User
	ExpiresAt time.Time
}

// RequestCode registers email if needed and issues a single-use login code.
// Only the SHA-256 of the code is stored.
func (s *Service) RequestCode(ctx context.Context, email string) (*LoginCode, error) {
	u, err := s.accounts.EnsureUser(ctx, email)
	if err != nil {
		return nil, err
	}
	code, err := randomCode()
	if err != nil {
		return nil, err
	}
	exp := s.now().Add(s.opts.CodeTTL)
	if err := s.accounts.CreateLoginCode(ctx, checksum.Code(code), u.ID, exp); err != nil {
		return nil, err
	}
	return &LoginCode{Code: code, User: u, ExpiresAt: exp}, nil
}

// Exchange trades a login code for a signed session token.
func (s *Service) Exchange(ctx context.Context, code string) (string, *models.Session, error) {
	if code == "" {
		return "", nil, apperr.ErrInvalidCode
	}
	now := s.now()
	userID, err := s.accounts.ConsumeLoginCode(ctx, checksum.Code(code), now)
	if err != nil {
		return "", nil, err
	}

	sess := models.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", nil, err
	}
	token, err := GenerateToken(sess.ID, sess.UserID, s.opts.Secret, now, sess.ExpiresAt)
	if err != nil {
		return "", nil, err
	}
	s.log.Info("session started", logger.String("user_id", userID), logger.String("session_id", sess.ID))
	return token, &sess, nil
}

// CurrentUser resolves the user behind token. Invalid, expired and revoked
// tokens all wrap apperr.ErrUnauthenticated.
func (s *Service) CurrentUser(ctx context.Context, token string) (*models.User, *models.Session, error) {
	if token == "" {
		return nil, nil, apperr.ErrUnauthenticated
	}
	now := s.now()
	claims, err := ParseToken(token, s.opts.Secret, now)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.VerifySession(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if sess.UserID != claims.UserID {
		return nil, nil, fmt.Errorf("%w: session owner mismatch", apperr.ErrUnauthenticated)
	}
	u, err := s.accounts.User(ctx, sess.UserID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: user gone", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return nil, nil, err
	}
	return u, sess, nil
}

// VerifySession reports whether sessionID is still active. Revoked and expired
// sessions wrap apperr.ErrUnauthenticated.
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*models.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("%w: session revoked", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return nil, err
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, ErrSessionExpired)
	}
	return sess, nil
}

// OnRevoke registers fn to run after a session is signed out. Register hooks
// before serving requests.
func (s *Service) OnRevoke(fn func(sessionID string)) {
	s.revokeHooks = append(s.revokeHooks, fn)
}

// SignOut revokes the session behind token. Signing out an invalid token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := ParseToken(token, s.opts.Secret, s.now())
	if err != nil {
		return nil
	}
	if err := s.sessions.Delete(ctx, claims.ID); err != nil {
		return err
	}
	for _, fn := range s.revokeHooks {
		fn(claims.ID)
	}
	s.log.Info("session ended", logger.String("user_id", claims.UserID), logger.String("session_id", claims.ID))
	return nil
}

func randomCode() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
