package router

import (
	"log/slog"
	"net/http"

	"contacts_service/internal/auth"
	"contacts_service/internal/contacts"
	"contacts_service/internal/http_server/handlers/contacts/create"
	"contacts_service/internal/http_server/handlers/contacts/list"
	"contacts_service/internal/http_server/handlers/contacts/remove"
	"contacts_service/internal/http_server/handlers/contacts/update"
	"contacts_service/internal/http_server/handlers/login"
	"contacts_service/internal/http_server/handlers/logout"
	"contacts_service/internal/http_server/handlers/refresh"
	"contacts_service/internal/http_server/handlers/register"
	resp "contacts_service/internal/lib/api/response"
	"contacts_service/internal/middleware/authgate"
	rateLimit "contacts_service/internal/middleware/ratelimit"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Options struct {
	RateLimit bool
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	contactsService *contacts.Service,
	opts Options,
) *chi.Mux {
	limit := func(l func() func(http.Handler) http.Handler) func(http.Handler) http.Handler {
		if !opts.RateLimit {
			return rateLimit.Passthrough()
		}

		return l()
	}

	gate := authgate.New(log, authService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("Not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		render.Status(r, http.StatusMethodNotAllowed)
		render.JSON(w, r, resp.Error("Method not allowed"))
	})

	r.Route("/users", func(r chi.Router) {
		r.With(limit(rateLimit.Register)).Post("/",
			register.New(log, validate, authService),
		)
		r.With(limit(rateLimit.Login)).Post("/login",
			login.New(log, validate, authService),
		)
		r.With(limit(rateLimit.Refresh)).Post("/refresh",
			refresh.New(log, authService),
		)
		r.With(limit(rateLimit.Logout), gate).Post("/logout",
			logout.New(log, authService),
		)
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Use(gate)

		r.Post("/", create.New(log, validate, contactsService))
		r.Get("/", list.New(log, contactsService))
		r.Put("/{id}", update.New(log, validate, contactsService))
		r.Delete("/{id}", remove.New(log, contactsService))
	})

	return r
}
