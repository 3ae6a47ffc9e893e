package logout

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "contacts_service/internal/lib/api/response"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/middleware/authgate"
	"contacts_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Data struct {
	Message string `json:"message"`
}

type UserLogout interface {
	Logout(ctx context.Context, identity models.Identity) error
}

// New godoc
// @Summary      Log out
// @Description  Revokes the presented bearer token. The token stays revoked until its natural expiry.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response  "Logged out"
// @Failure      401  {object}  response.Response  "Missing or invalid token"
// @Failure      500  {object}  response.Response  "Internal error"
// @Router       /users/logout [post]
func New(
	log *slog.Logger,
	userLogout UserLogout,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.logout.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authgate.IdentityFromContext(r.Context())
		if !ok {
			log.Error("identity missing from context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Token not provided"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := userLogout.Logout(ctx, identity); err != nil {
			log.Error("failed to logout user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("user logged out successfully")

		render.JSON(w, r, resp.OK(Data{Message: "Logout successful"}))
	}
}
