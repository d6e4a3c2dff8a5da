// Package cmd wires the application together: PocketBase app, Redis store,
// payment gateway, services, routes and background loops.
package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"waitroom/config"
	"waitroom/durable"
	"waitroom/handlers"
	"waitroom/internal/pg"
	"waitroom/monitoring"
	"waitroom/services"
	"waitroom/store"

	_ "waitroom/migrations"
)

func Execute() {
	app := pocketbase.New()
	cfg := config.LoadConfig()

	redisClient, err := store.NewClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	st := store.New(redisClient)

	gateway, err := pg.NewAdapter(pg.Config{
		Provider:      pg.Provider(cfg.PgProvider),
		TossSecretKey: cfg.TossSecretKey,
		TossBaseURL:   cfg.TossBaseURL,
		WebhookSecret: cfg.WebhookSecret,
	})
	if err != nil {
		log.Fatalf("payment gateway: %v", err)
	}

	monitor := monitoring.NewMonitor()
	notifier := services.NewNotifier(cfg)
	writer := services.NewWriter(cfg.PersistQueueSize)

	repo := durable.NewRepo(app)

	queueService := services.NewQueueService(st, cfg, notifier, monitor)
	admissionService := services.NewAdmissionService(st, cfg, notifier, monitor)
	reservationService := services.NewReservationService(st, cfg, repo, writer, monitor)
	paymentService := services.NewPaymentService(st, cfg, repo, gateway, writer, notifier, monitor)
	adminService := services.NewAdminService(st, cfg, repo, monitor)
	cleanupService := services.NewCleanupService(st, repo, monitor)
	persistenceService := services.NewPersistenceService(st, repo, monitor)

	scheduler := services.NewScheduler(st, cfg, admissionService, cleanupService, persistenceService)

	queueHandler := handlers.NewQueueHandler(queueService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	adminHandler := handlers.NewAdminHandler(adminService)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Queue
		e.Router.POST("/api/ticketing/events/{eventId}/queue/enter", queueHandler.Enter).Bind(apis.RequireAuth())
		e.Router.GET("/api/ticketing/events/{eventId}/queue/status", queueHandler.Status).Bind(apis.RequireAuth())
		e.Router.POST("/api/ticketing/events/{eventId}/queue/leave", queueHandler.Leave).Bind(apis.RequireAuth())
		e.Router.GET("/api/ticketing/events/{eventId}/info", queueHandler.Info)

		// Reservations
		e.Router.GET("/api/ticketing/events/{eventId}/tickets", reservationHandler.Tickets)
		e.Router.POST("/api/ticketing/events/{eventId}/reserve", reservationHandler.Reserve).Bind(apis.RequireAuth())
		e.Router.POST("/api/ticketing/events/{eventId}/reservation/cancel", reservationHandler.Cancel).Bind(apis.RequireAuth())
		e.Router.GET("/api/ticketing/events/{eventId}/reservation", reservationHandler.Current).Bind(apis.RequireAuth())

		// Payments
		e.Router.POST("/api/ticketing/events/{eventId}/payment/initiate", paymentHandler.Initiate).Bind(apis.RequireAuth())
		e.Router.POST("/api/ticketing/events/{eventId}/payment/confirm", paymentHandler.Confirm).Bind(apis.RequireAuth())
		e.Router.GET("/api/ticketing/events/{eventId}/payment/status", paymentHandler.Status).Bind(apis.RequireAuth())
		e.Router.POST("/api/ticketing/payment/webhook", paymentHandler.Webhook)

		// Admin
		e.Router.POST("/api/ticketing/admin/events", adminHandler.CreateEvent).Bind(apis.RequireSuperuserAuth())
		e.Router.PATCH("/api/ticketing/admin/events/{eventId}", adminHandler.UpdateEvent).Bind(apis.RequireSuperuserAuth())
		e.Router.POST("/api/ticketing/admin/events/{eventId}/open", adminHandler.OpenEvent).Bind(apis.RequireSuperuserAuth())
		e.Router.POST("/api/ticketing/admin/events/{eventId}/close", adminHandler.CloseEvent).Bind(apis.RequireSuperuserAuth())
		e.Router.GET("/api/ticketing/admin/events/{eventId}/stats", adminHandler.Stats).Bind(apis.RequireSuperuserAuth())
		e.Router.POST("/api/ticketing/admin/events/{eventId}/stock", adminHandler.AdjustStock).Bind(apis.RequireSuperuserAuth())

		// Ops
		e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		e.Router.GET("/health", func(re *core.RequestEvent) error {
			if err := st.HealthCheck(re.Request.Context()); err != nil {
				return re.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return re.JSON(http.StatusOK, map[string]string{"status": "ok"})
		})

		// Bring the open-events set back in line with durable truth, then
		// start the background loops.
		if err := adminService.RestoreOpenEvents(context.Background()); err != nil {
			slog.Error("restore open events", "error", err)
		}
		writer.Start()
		scheduler.Start()

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		scheduler.Stop()
		writer.Stop()
		if err := redisClient.Close(); err != nil {
			slog.Warn("redis close", "error", err)
		}
		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
}
