package list

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

type ContactLister interface {
	List(ctx context.Context, owner models.Identity) ([]models.Contact, error)
}

// New godoc
// @Summary      List own contacts
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response  "Contacts of the authenticated user"
// @Failure      401  {object}  response.Response  "Missing or invalid token"
// @Router       /contacts [get]
func New(
	log *slog.Logger,
	lister ContactLister,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contacts.list.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		owner, ok := authgate.IdentityFromContext(r.Context())
		if !ok {
			log.Error("identity missing from context")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Token not provided"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		contacts, err := lister.List(ctx, owner)
		if err != nil {
			log.Error("failed to list contacts", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if contacts == nil {
			contacts = []models.Contact{}
		}

		render.JSON(w, r, resp.OK(contacts))
	}
}
