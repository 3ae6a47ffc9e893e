package refresh

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"contacts_service/internal/auth"
	resp "contacts_service/internal/lib/api/response"
	"contacts_service/internal/lib/jwt"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/middleware/authgate"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Data struct {
	Token string `json:"token"`
}

type TokenRefresher interface {
	Refresh(ctx context.Context, token string) (string, error)
}

// New godoc
// @Summary      Refresh a token
// @Description  Exchanges the presented bearer token for a new one. The presented token may be
// @Description  expired for at most the configured grace period; it is revoked on success.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response  "New token"
// @Failure      401  {object}  response.Response  "Missing, invalid, revoked or too old token"
// @Failure      500  {object}  response.Response  "Internal error"
// @Router       /users/refresh [post]
func New(
	log *slog.Logger,
	refresher TokenRefresher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.refresh.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token, err := authgate.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Token not provided"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		newToken, err := refresher.Refresh(ctx, token)
		if err != nil {
			if errors.Is(err, auth.ErrRevocationUnavailable) || !isAuthFailure(err) {
				log.Error("failed to refresh token", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Invalid or expired token"))

			return
		}

		log.Info("Token refreshed successfully")

		render.JSON(w, r, resp.OK(Data{Token: newToken}))
	}
}

func isAuthFailure(err error) bool {
	return errors.Is(err, jwt.ErrMalformed) ||
		errors.Is(err, jwt.ErrExpired) ||
		errors.Is(err, auth.ErrTokenRevoked) ||
		errors.Is(err, auth.ErrRefreshWindowClosed) ||
		errors.Is(err, auth.ErrInvalidCredentials)
}
