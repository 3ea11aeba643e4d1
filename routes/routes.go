package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Dosada05/tournament-core/handlers"
	"github.com/Dosada05/tournament-core/middleware"
	"github.com/Dosada05/tournament-core/models"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Identity   *handlers.IdentityHandler
	Team       *handlers.TeamHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Payment    *handlers.PaymentHandler
	WebSocket  *handlers.WebSocketHandler
}

type Options struct {
	JWTSecret        string
	SyncServiceToken string
	CORSOrigins      []string
	Gatherer         prometheus.Gatherer
	Logger           *slog.Logger
}

func SetupRoutes(r chi.Router, h Handlers, opts Options) {
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.ServiceTokenHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	authenticate := middleware.Authenticate(opts.JWTSecret, opts.Logger)
	organizer := middleware.RequireRole(models.RoleOrganizer)

	r.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
		})

		r.With(middleware.RequireServiceToken(opts.SyncServiceToken)).Post("/identities/sync", h.Identity.Sync)

		// Всё ниже требует JWT.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/me", h.Identity.Me)
			r.With(middleware.RequireRole(models.RoleAdministrator)).Delete("/identities/{identityID}", h.Identity.Delete)

			r.Route("/teams", func(r chi.Router) {
				r.With(organizer).Post("/", h.Team.CreateTeam)
				r.Route("/{teamID}", func(r chi.Router) {
					r.Get("/", h.Team.GetTeam)
					r.Get("/members", h.Team.ListMembers)
					r.With(organizer).Post("/members", h.Team.AddMember)
					r.With(organizer).Delete("/members/{playerID}", h.Team.RemoveMember)
					r.With(organizer).Put("/logo", h.Team.UploadLogo)
				})
			})

			r.Route("/tournaments", func(r chi.Router) {
				r.Get("/", h.Tournament.List)
				r.With(organizer).Post("/", h.Tournament.Create)
				r.Route("/{tournamentID}", func(r chi.Router) {
					r.Get("/", h.Tournament.Get)
					r.With(organizer).Post("/transitions", h.Tournament.Transition)
					r.Get("/registrations", h.Tournament.Registrations)
					r.With(organizer).Post("/registrations", h.Tournament.RegisterTeam)
					r.Get("/matches", h.Match.List)
					r.With(organizer).Post("/matches", h.Match.Schedule)
				})
			})

			r.Route("/matches/{matchID}", func(r chi.Router) {
				officials := middleware.RequireRole(models.RoleReferee, models.RoleOrganizer)

				r.Get("/", h.Match.Get)
				r.With(organizer).Put("/referee", h.Match.AssignReferee)
				r.With(officials).Put("/score", h.Match.RecordScore)
				r.With(officials).Post("/transitions", h.Match.Transition)
			})

			r.Route("/payments", func(r chi.Router) {
				player := middleware.RequireRole(models.RolePlayer)
				admin := middleware.RequireRole(models.RoleAdministrator)

				r.With(player).Post("/", h.Payment.Record)
				r.With(player).Get("/", h.Payment.ListMine)
				r.With(admin).Post("/{paymentID}/paid", h.Payment.MarkPaid)
				r.With(admin).Post("/{paymentID}/refused", h.Payment.MarkRefused)
				r.With(admin).Post("/{paymentID}/refunded", h.Payment.MarkRefunded)
			})
		})
	})
}
