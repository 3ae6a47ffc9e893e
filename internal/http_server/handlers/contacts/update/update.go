package update

import (
	"context"
	"errors"
	"io"
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
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Phone string `json:"phone" validate:"required,phone"`
}

type ContactUpdater interface {
	Update(ctx context.Context, owner models.Identity, id int64, name, phone string) (models.Contact, error)
}

// New godoc
// @Summary      Update a contact
// @Description  Only the owner can update a contact. A contact of another user is reported as not found.
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path  int      true  "Contact ID"
// @Param        contact  body  Request  true  "Contact"
// @Success      200  {object}  response.Response  "Updated contact"
// @Failure      400  {object}  response.Response  "Validation error"
// @Failure      401  {object}  response.Response  "Missing or invalid token"
// @Failure      404  {object}  response.Response  "Contact not found"
// @Router       /contacts/{id} [put]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	updater ContactUpdater,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contacts.update.New"

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

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil && !errors.Is(err, io.EOF) {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Info("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

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

		contact, err := updater.Update(ctx, owner, id, req.Name, req.Phone)
		if err != nil {
			if errors.Is(err, contacts.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Contact not found"))

				return
			}

			log.Error("failed to update contact", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK(contact))
	}
}
