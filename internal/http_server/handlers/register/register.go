package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"contacts_service/internal/auth"
	resp "contacts_service/internal/lib/api/response"
	sl "contacts_service/internal/lib/logger/sl"
	"contacts_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Pass     string `json:"password" validate:"required,min=6,max=72,maxbytes=72"`
}

type Data struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

type UserRegisterer interface {
	RegisterNewUser(ctx context.Context, username string, pass string) (models.User, error)
}

// New godoc
// @Summary      Register a user
// @Description  Creates a user with a unique username. The password is stored as a bcrypt hash.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        user  body  Request  true  "Credentials"
// @Success      201  {object}  response.Response  "User created"
// @Failure      400  {object}  response.Response  "Validation error or username already taken"
// @Failure      500  {object}  response.Response  "Internal error"
// @Router       /users [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	registerer UserRegisterer,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

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

		user, err := registerer.RegisterNewUser(ctx, req.Username, req.Pass)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Username already taken"))

				return
			}

			log.Error("failed to register user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User registered", slog.Int64("id", user.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, resp.OK(Data{
			Message: "User created successfully",
			User:    user,
		}))
	}
}
