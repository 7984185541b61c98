package http

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/salonlabs/billing-backend-go/internal/handler/http/middleware"
	"github.com/salonlabs/billing-backend-go/internal/pkg/jwt"
)

func NewRouter(jwtService jwt.Service, billingHandler BillingHandler) *chi.Mux {
	r := chi.NewRouter()
	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "salonlabs-billing"),
		slog.String("version", "v1.0.0"),
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", billingHandler.GetPlans)

		// The provider authenticates with a payload signature, not a JWT.
		r.Post("/webhook/billing", billingHandler.HandleWebhook)

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(jwtService.JWTAuth()))
			r.Use(middleware.AuthRequired(jwtService.JWTAuth()))

			r.Route("/billing", func(r chi.Router) {
				r.Get("/account", billingHandler.GetMyAccount)

				// Owner only
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireOwner)
					r.Post("/account", billingHandler.CreateAccount)
					r.Post("/account/activate-trial", billingHandler.ActivateTrial)
					r.Post("/upgrade", billingHandler.Upgrade)
					r.Post("/downgrade", billingHandler.Downgrade)
					r.Delete("/downgrade", billingHandler.CancelDowngrade)
				})
			})
		})
	})
	return r
}
