package authgate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"contacts_service/internal/auth"
	resp "contacts_service/internal/lib/api/response"
	"contacts_service/internal/lib/jwt"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// ErrNoCredential means the Authorization header is absent or not a bearer credential.
var ErrNoCredential = errors.New("no credential presented")

const bearerPrefix = "Bearer "

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string, opts jwt.ParseOptions) (models.Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, identity models.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, identity)
}

// IdentityFromContext returns the identity attached by the gate.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	identity, ok := ctx.Value(ctxKey{}).(models.Identity)
	return identity, ok
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	token, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok {
		return "", ErrNoCredential
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrNoCredential
	}

	return token, nil
}

// New rejects requests without a valid, unrevoked bearer token and passes the
// resolved identity downstream through the request context.
func New(log *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authgate"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				log.Info("no credential presented")

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Token not provided"))

				return
			}

			identity, err := verifier.VerifyToken(r.Context(), token, jwt.ParseOptions{})
			if err != nil {
				if errors.Is(err, auth.ErrRevocationUnavailable) {
					log.Error("cannot check token revocation", sl.Err(err))

					render.Status(r, http.StatusInternalServerError)
					render.JSON(w, r, resp.Error("Internal error"))

					return
				}

				log.Info("invalid credential", sl.Err(err))

				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid or expired token"))

				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}
