package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"contacts_service/internal/models"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTTL = time.Hour

var (
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
)

type claims struct {
	gojwt.RegisteredClaims
	Username string `json:"username"`
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Tokens)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(t *Tokens) {
		t.now = now
	}
}

// ParseOptions tunes Parse. AllowExpired skips the expiry check only; the
// signature and the signing method are always verified.
type ParseOptions struct {
	AllowExpired bool
}

func New(secret string, ttl time.Duration, opts ...Option) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	t := &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

func (t *Tokens) TTL() time.Duration {
	return t.ttl
}

// * NewToken issues an HS256 token for the user with a fresh jti.
func (t *Tokens) NewToken(user models.User) (string, error) {
	const op = "jwt.NewToken"

	now := t.now()

	c := claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(t.ttl)),
		},
		Username: user.Username,
	}

	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// * Parse verifies the token and returns the identity it carries.
func (t *Tokens) Parse(tokenStr string, opts ParseOptions) (models.Identity, error) {
	const op = "jwt.Parse"

	parserOpts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(t.now),
		gojwt.WithExpirationRequired(),
	}
	if opts.AllowExpired {
		parserOpts = append(parserOpts, gojwt.WithoutClaimsValidation())
	}

	var c claims

	_, err := gojwt.ParseWithClaims(tokenStr, &c, func(*gojwt.Token) (interface{}, error) {
		return t.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenExpired) {
			return models.Identity{}, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return models.Identity{}, fmt.Errorf("%s: %w: %w", op, ErrMalformed, err)
	}

	if c.ID == "" || c.ExpiresAt == nil {
		return models.Identity{}, fmt.Errorf("%s: %w: missing jti or exp", op, ErrMalformed)
	}

	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%s: %w: bad subject", op, ErrMalformed)
	}

	identity := models.Identity{
		UserID:    uid,
		Username:  c.Username,
		TokenID:   c.ID,
		ExpiresAt: c.ExpiresAt.Time,
	}
	if c.IssuedAt != nil {
		identity.IssuedAt = c.IssuedAt.Time
	}

	return identity, nil
}
