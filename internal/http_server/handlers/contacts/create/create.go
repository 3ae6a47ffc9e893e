package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	resp "contacts_service/internal/lib/api/response"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/middleware/authgate"
	"contacts_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Name  string `json:"name" validate:"required,min=2,max=50"`
	Phone string `json:"phone" validate:"required,phone"`
}

type Data struct {
	Contact models.Contact `json:"contact"`
}

type ContactCreator interface {
	Create(ctx context.Context, owner models.Identity, name, phone string) (models.Contact, error)
}

// New godoc
// @Summary      Create a contact
// @Tags         contacts
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        contact  body  Request  true  "Contact"
// @Success      201  {object}  response.Response  "Contact created"
// @Failure      400  {object}  response.Response  "Validation error"
// @Failure      401  {object}  response.Response  "Missing or invalid token"
// @Router       /contacts [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	creator ContactCreator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.contacts.create.New"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		contact, err := creator.Create(ctx, owner, req.Name, req.Phone)
		if err != nil {
			log.Error("failed to create contact", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK(Data{Contact: contact}))
	}
}
