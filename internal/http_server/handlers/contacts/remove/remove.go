package remove

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"contacts_service/internal/contacts"
	resp "contacts_service/internal/lib/api/response"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/middleware/authgate"
	"contacts_service/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Data struct {
	Message string `json:"message"`
}

type ContactDeleter interface {
	Delete(ctx context.Context, owner models.Identity, id int64) error
}

// New godoc
// @Summary      Delete a contact
// @Tags         contacts
// @Produce      json
// @Security     BearerAuth
// @Param        id  path  int  true  "Contact ID"
// @Success      200  {object}  response.Response  "Contact deleted"
// @Failure      401  {object}  response.Response  "Missing or invalid token"
// @Failure      404  {object}  response.Response  "Contact not found"
// @Router       /contacts/{id} [delete]
func New(
	log *slog.Logger,
	deleter ContactDeleter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contacts.remove.New"

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

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("Contact not found"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := deleter.Delete(ctx, owner, id); err != nil {
			if errors.Is(err, contacts.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Contact not found"))

				return
			}

			log.Error("failed to delete contact", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK(Data{Message: "Contact deleted successfully"}))
	}
}
