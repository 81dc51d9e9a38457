package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"curehub-backend/internal/appointment"
	"curehub-backend/internal/auth"
	"curehub-backend/internal/availability"
	"curehub-backend/internal/cache"
	"curehub-backend/internal/config"
	"curehub-backend/internal/db"
	"curehub-backend/internal/middleware"
	"curehub-backend/internal/notifications"
	"curehub-backend/internal/principal"
	"curehub-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Error("mongo connection failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("mongo connected")
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols, cfg.StrictSlotClaim); err != nil {
		logger.Error("index creation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var cacheStore cache.Cache = cache.NewNoop()
	if cfg.RedisURL != "" || cfg.RedisAddr != "" {
		var redisCache *cache.RedisCache
		var err error
		if cfg.RedisURL != "" {
			redisCache, err = cache.NewRedisFromURL(cfg.RedisURL)
		} else {
			redisCache = cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		}
		if err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := redisCache.Ping(ctx); err != nil {
			logger.Error("redis connection failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("redis connected")
		cacheStore = redisCache
	}

	tokens := &auth.Manager{
		Secret: []byte(cfg.JWTSecret),
		TTL:    time.Duration(cfg.TokenTTLHours) * time.Hour,
		Issuer: "curehub-backend",
	}

	mailer := notifications.NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoSenderEmail, cfg.BrevoSenderName, cfg.BrevoSandbox)
	if mailer == nil {
		logger.Info("brevo mailer disabled")
	} else {
		logger.Info("brevo mailer enabled", slog.String("sender", cfg.BrevoSenderEmail), slog.Bool("sandbox", cfg.BrevoSandbox))
	}

	val := validation.New()
	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second

	principalRepo := principal.NewRepository(cols.Principals)
	principalService := principal.NewService(principalRepo, cfg.Timezone, cfg.GlobalUniqueEmail)
	var credentialMailer principal.CredentialMailer
	if mailer != nil {
		credentialMailer = mailer
	}
	principalHandler := principal.NewHandler(principalService, tokens, val, logger, cacheStore, cacheTTL, credentialMailer)

	availabilityService := availability.NewService(principalRepo, cfg.Timezone)
	availabilityHandler := availability.NewHandler(availabilityService, val, logger, cacheStore, cacheTTL)

	appointmentRepo := appointment.NewRepository(cols.Appointments)
	appointmentService := appointment.NewService(appointmentRepo, principalRepo, availabilityService, cfg.Timezone, logger)
	appointmentHandler := appointment.NewHandler(appointmentService, val, logger)

	reconciler := appointment.NewReconciler(appointmentRepo, principalRepo, logger)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.MirrorReconcileSpec, reconciler.Run); err != nil {
		logger.Error("reconcile schedule invalid", slog.String("spec", cfg.MirrorReconcileSpec), slog.String("error", err.Error()))
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	resolvePrincipal := func(ctx context.Context, id string) (middleware.Principal, error) {
		p, err := principalService.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, principal.ErrNotFound) || errors.Is(err, mongo.ErrNoDocuments) {
				return middleware.Principal{}, middleware.ErrPrincipalNotFound
			}
			return middleware.Principal{}, err
		}
		return middleware.Principal{ID: p.ID, Role: p.Role, Name: p.Name, Email: p.Email}, nil
	}

	authenticated := middleware.Auth(tokens, resolvePrincipal)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.FrontendOrigins))
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	window := time.Duration(cfg.RateLimitWindowSec) * time.Second
	authLimiter := middleware.NewRateLimiter(cfg.RateLimitAuth, window)
	bookingLimiter := middleware.NewRateLimiter(cfg.RateLimitBooking, window)

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.With(authLimiter.Middleware).Post("/register", principalHandler.Register)
			ar.With(authLimiter.Middleware).Post("/login", principalHandler.Login)
			ar.With(authenticated).Get("/me", principalHandler.Me)
		})

		api.Route("/admin", func(ar chi.Router) {
			ar.Use(authenticated)
			ar.Use(middleware.RequireRole(principal.RoleAdmin))
			ar.Post("/doctors", principalHandler.AdminCreateDoctor)
			ar.Get("/doctors", principalHandler.AdminListDoctors)
			ar.Delete("/doctors/{id}", principalHandler.AdminDeleteDoctor)
		})

		api.Route("/doctor", func(dr chi.Router) {
			dr.Use(authenticated)
			dr.Use(middleware.RequireRole(principal.RoleDoctor))
			dr.Put("/profile", principalHandler.UpdateProfile)
			dr.Post("/availability", availabilityHandler.DoctorAddSlots)
			dr.Get("/availability", availabilityHandler.DoctorListLedger)
			dr.Delete("/availability", availabilityHandler.DoctorRemoveSlot)
			dr.Get("/appointments", appointmentHandler.DoctorList)
			dr.Put("/appointments", appointmentHandler.DoctorUpdate)
		})

		api.Route("/patient", func(pr chi.Router) {
			pr.Use(authenticated)
			pr.Use(middleware.RequireRole(principal.RolePatient))
			pr.Get("/doctors", principalHandler.PatientListDoctors)
			pr.Get("/doctors/{id}/availability", availabilityHandler.PatientDoctorAvailability)
			pr.With(bookingLimiter.Middleware).Post("/appointments", appointmentHandler.PatientBook)
			pr.Get("/appointments", appointmentHandler.PatientList)
			pr.Delete("/appointments/{id}", appointmentHandler.PatientCancel)
			pr.Put("/profile", principalHandler.UpdateProfile)
		})
	})

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: r,
	}

	go func() {
		logger.Info("server started", slog.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
}
