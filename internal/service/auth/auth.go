// Package auth registers users, checks their credentials and keeps track of
// the sessions issued to them.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IlyasAtabaev731/market/internal/domain/models"
	"github.com/IlyasAtabaev731/market/internal/lib/jwt"
	"github.com/IlyasAtabaev731/market/internal/lib/password"
	"github.com/IlyasAtabaev731/market/internal/lib/validate"
	"github.com/google/uuid"
)

const (
	usernameMinLen   = 2
	usernameMaxLen   = 30
	passwordMinLen   = 6
	// bcrypt rejects longer input.
	passwordMaxBytes = 72
	emailMaxBytes    = 254
)

type UserStore interface {
	SaveUser(ctx context.Context, username, email string, passHash []byte) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

type Service struct {
	log      *slog.Logger
	users    UserStore
	sessions *sync.Map
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func New(log *slog.Logger, users UserStore, secret string, ttl time.Duration) *Service {
	return &Service{
		log:      log,
		users:    users,
		sessions: &sync.Map{},
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Register validates the input, hashes the password and stores a new user.
// Every failed rule is reported at once as *validate.Errors.
func (s *Service) Register(ctx context.Context, username, email, pass string) (*models.User, error) {
	const op = "auth.Register"

	v := validate.New()
	if v.Required("username", username) {
		v.Length("username", username, usernameMinLen, usernameMaxLen)
	}
	if v.Required("email", email) && v.MaxBytes("email", email, emailMaxBytes) {
		v.Email("email", email)
	}
	if v.Required("password", pass) && v.MinLength("password", pass, passwordMinLen) {
		v.MaxBytes("password", pass, passwordMaxBytes)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	s.log.Info("Register new user", slog.String("username", username))

	passHash, err := password.Hash(pass)
	if err != nil {
		s.log.Error("Failed to hash password", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.SaveUser(ctx, username, email, passHash)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateUsername) || errors.Is(err, models.ErrDuplicateEmail) {
			return nil, err
		}
		s.log.Error("Failed to save user", "error", err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// Authenticate looks the user up by username or email and checks the
// password against the stored digest.
func (s *Service) Authenticate(ctx context.Context, identifier, pass string) (*models.User, error) {
	const op = "auth.Authenticate"

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !password.Verify(pass, []byte(user.PasswordHash)) {
		s.log.Info("Rejected credentials", slog.Int64("user_id", user.ID))
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

// Login opens a session for the user and returns it with its signed token.
func (s *Service) Login(ctx context.Context, user *models.User) (models.Session, string, error) {
	const op = "auth.Login"

	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: s.now().Add(s.ttl).Truncate(time.Second),
	}

	token, err := jwt.NewToken(session, s.secret)
	if err != nil {
		return models.Session{}, "", fmt.Errorf("%s: %w", op, err)
	}

	s.sessions.Store(session.ID, session)
	s.log.Debug("Session opened", slog.Int64("user_id", user.ID), slog.String("session", session.ID))

	return session, token, nil
}

// Resolve returns the live session the token belongs to.
func (s *Service) Resolve(ctx context.Context, token string) (models.Session, error) {
	claimed, err := jwt.ParseSession(token, s.secret)
	if err != nil {
		return models.Session{}, models.ErrUnauthenticated
	}

	stored, ok := s.sessions.Load(claimed.ID)
	if !ok {
		return models.Session{}, models.ErrUnauthenticated
	}
	session := stored.(models.Session)
	if session.UserID != claimed.UserID || session.Expired(s.now()) {
		return models.Session{}, models.ErrUnauthenticated
	}

	return session, nil
}

// Logout invalidates the session behind token.
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.Resolve(ctx, token)
	if err != nil {
		return err
	}
	s.sessions.Delete(session.ID)
	s.log.Debug("Session closed", slog.Int64("user_id", session.UserID), slog.String("session", session.ID))
	return nil
}

// User loads the current state of the session's user.
func (s *Service) User(ctx context.Context, session models.Session) (*models.User, error) {
	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("auth.User: %w", err)
	}
	return user, nil
}

// PruneExpired drops sessions that expired before now and reports how many
// were removed.
func (s *Service) PruneExpired(now time.Time) int {
	removed := 0
	s.sessions.Range(func(key, value any) bool {
		if value.(models.Session).Expired(now) {
			s.sessions.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// StartCron prunes expired sessions every interval until ctx is done.
func (s *Service) StartCron(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.PruneExpired(s.now()); n > 0 {
					s.log.Debug("Pruned expired sessions", slog.Int("count", n))
				}
			}
		}
	}()
}
