package login

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
	Username string `json:"username" validate:"required"`
	Pass     string `json:"password" validate:"required"`
}

type Data struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

type UserLogin interface {
	Login(ctx context.Context, username, password string) (string, models.User, error)
}

// New godoc
// @Summary      Log in
// @Description  Checks the credentials and returns a bearer token valid for the configured TTL.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        credentials  body  Request  true  "Credentials"
// @Success      200  {object}  response.Response  "Token issued"
// @Failure      400  {object}  response.Response  "Validation error"
// @Failure      401  {object}  response.Response  "Invalid credentials"
// @Router       /users/login [post]
func New(
	log *slog.Logger,
	validate *validator.Validate,
	userLogin UserLogin,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.login.New"

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

		token, user, err := userLogin.Login(ctx, req.Username, req.Pass)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("Invalid credentials"))

				return
			}

			log.Error("failed to login user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("User logged in successfully")

		render.JSON(w, r, resp.OK(Data{
			Message: "Login successful",
			Token:   token,
			User:    user,
		}))
	}
}
