package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contacts_service/internal/lib/jwt"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/models"
	"contacts_service/internal/storage"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrUserExists            = errors.New("user already exists")
	ErrTokenRevoked          = errors.New("token revoked")
	ErrRevocationUnavailable = errors.New("revocation store unavailable")
	ErrRefreshWindowClosed   = errors.New("refresh window closed")
)

type Auth struct {
	log          *slog.Logger
	usrSaver     UserSaver
	usrProvider  UserProvider
	revoker      Revoker
	hasher       PasswordHasher
	tokens       *jwt.Tokens
	publisher    EventPublisher
	refreshGrace time.Duration
	now          func() time.Time

	fallbackOnce sync.Once
	fallback     []byte
}

type UserSaver interface {
	SaveUser(ctx context.Context, username string, passHash []byte) (uid int64, err error)
}

type UserProvider interface {
	User(ctx context.Context, username string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
}

type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	RevokeOnce(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type PasswordHasher interface {
	Hash(password string) ([]byte, error)
	Verify(password string, hash []byte) bool
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Option func(*Auth)

// WithPublisher enables account events. Without it no events are sent.
func WithPublisher(p EventPublisher) Option {
	return func(a *Auth) {
		a.publisher = p
	}
}

func WithRefreshGrace(d time.Duration) Option {
	return func(a *Auth) {
		a.refreshGrace = d
	}
}

// WithClock must match the clock given to the jwt.Tokens.
func WithClock(now func() time.Time) Option {
	return func(a *Auth) {
		a.now = now
	}
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	revoker Revoker,
	hasher PasswordHasher,
	tokens *jwt.Tokens,
	opts ...Option,
) *Auth {
	a := &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		revoker:     revoker,
		hasher:      hasher,
		tokens:      tokens,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

func (a *Auth) RegisterNewUser(
	ctx context.Context,
	username string,
	pass string,
) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("registering new user")

	passHash, err := a.hasher.Hash(pass)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	id, err := a.usrSaver.SaveUser(ctx, username, passHash)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{ID: id, Username: username}

	a.publish(ctx, log, models.EventUserRegistered, user.ID, user.Username)

	return user, nil
}

// * Login checks the credentials and issues a session token.
// Unknown username and wrong password both yield ErrInvalidCredentials.
func (a *Auth) Login(
	ctx context.Context,
	username, password string,
) (string, models.User, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("user not found")
			a.hasher.Verify(password, a.fallbackHash())
			return "", models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to get user", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(password, user.PassHash) {
		log.Info("invalid credentials")
		return "", models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := a.tokens.NewToken(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))

	a.publish(ctx, log, models.EventUserLoggedIn, user.ID, user.Username)

	return token, models.User{ID: user.ID, Username: user.Username}, nil
}

// * VerifyToken checks the signature and expiry, then asks the revocation store.
// The second step fails closed: if the store cannot answer, the token is rejected.
func (a *Auth) VerifyToken(
	ctx context.Context,
	token string,
	opts jwt.ParseOptions,
) (models.Identity, error) {
	const op = "auth.VerifyToken"

	identity, err := a.tokens.Parse(token, opts)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w", op, err)
	}

	revoked, err := a.revoker.IsRevoked(ctx, identity.TokenID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, ErrRevocationUnavailable, err)
	}

	if revoked {
		return models.Identity{}, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	return identity, nil
}

// * Logout revokes the presented token until it can no longer be refreshed.
func (a *Auth) Logout(
	ctx context.Context,
	identity models.Identity,
) error {
	const op = "auth.Logout"

	log := a.log.With(
		slog.String("op", op),
		slog.Int64("uid", identity.UserID),
	)

	if err := a.revoker.Revoke(ctx, identity.TokenID, a.refreshWindowEnd(identity).Sub(a.now())); err != nil {
		log.Error("failed to revoke token", sl.Err(err))
		return fmt.Errorf("%s: %w: %w", op, ErrRevocationUnavailable, err)
	}

	log.Info("logout successful")

	a.publish(ctx, log, models.EventUserLoggedOut, identity.UserID, identity.Username)

	return nil
}

// * Refresh exchanges a valid, or recently expired, token for a new one.
// The old token is revoked so it cannot be refreshed twice.
func (a *Auth) Refresh(
	ctx context.Context,
	token string,
) (string, error) {
	const op = "auth.Refresh"

	log := a.log.With(
		slog.String("op", op),
	)

	identity, err := a.VerifyToken(ctx, token, jwt.ParseOptions{AllowExpired: true})
	if err != nil {
		log.Info("refresh rejected", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := a.now()
	windowEnd := a.refreshWindowEnd(identity)

	if !now.Before(windowEnd) {
		log.Info("refresh window closed", slog.Int64("uid", identity.UserID))
		return "", fmt.Errorf("%s: %w", op, ErrRefreshWindowClosed)
	}

	user, err := a.usrProvider.UserByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("token subject no longer exists", slog.Int64("uid", identity.UserID))
			return "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		log.Error("failed to load user", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	claimed, err := a.revoker.RevokeOnce(ctx, identity.TokenID, windowEnd.Sub(now))
	if err != nil {
		log.Error("failed to revoke old token", sl.Err(err))
		return "", fmt.Errorf("%s: %w: %w", op, ErrRevocationUnavailable, err)
	}

	if !claimed {
		log.Info("token already refreshed", slog.Int64("uid", identity.UserID))
		return "", fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	newToken, err := a.tokens.NewToken(user)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return newToken, nil
}

// refreshWindowEnd is the last moment the token is accepted anywhere.
func (a *Auth) refreshWindowEnd(identity models.Identity) time.Time {
	return identity.ExpiresAt.Add(a.refreshGrace)
}

// fallbackHash is what Login verifies against when the username is unknown.
func (a *Auth) fallbackHash() []byte {
	a.fallbackOnce.Do(func() {
		hash, err := a.hasher.Hash("unknown-user-placeholder")
		if err != nil {
			a.log.Warn("failed to prepare fallback hash", sl.Err(err))
			return
		}
		a.fallback = hash
	})

	return a.fallback
}

func (a *Auth) publish(ctx context.Context, log *slog.Logger, eventType string, uid int64, username string) {
	if a.publisher == nil {
		return
	}

	err := a.publisher.Publish(ctx, models.Event{
		Type:       eventType,
		UserID:     uid,
		Username:   username,
		OccurredAt: a.now().UTC(),
	})
	if err != nil {
		log.Warn("failed to publish account event", slog.String("type", eventType), sl.Err(err))
	}
}
