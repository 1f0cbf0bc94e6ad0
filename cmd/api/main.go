package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/vikranta/safety/backend/internal/config"
	"github.com/vikranta/safety/backend/internal/database"
	"github.com/vikranta/safety/backend/internal/handlers"
	"github.com/vikranta/safety/backend/internal/logger"
	"github.com/vikranta/safety/backend/internal/middleware"
	"github.com/vikranta/safety/backend/internal/realtime"
	"github.com/vikranta/safety/backend/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Postgres
	postgres, err := database.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = postgres.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}
	log.Info("connected to postgres")

	// Initialize Redis
	redis, err := database.NewRedisDB(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Info("connected to redis")

	// Initialize Firebase (optional)
	var push services.PushSender
	if cfg.FCMCredentialsPath != "" {
		ctx := context.Background()
		app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FCMCredentialsPath))
		if err != nil {
			log.WithError(err).Warn("failed to initialize firebase, push disabled")
		} else if client, err := app.Messaging(ctx); err != nil {
			log.WithError(err).Warn("failed to initialize FCM client, push disabled")
		} else {
			push = services.NewFCMPush(client)
			log.Info("firebase FCM initialized")
		}
	}

	var sms services.SMSSender
	if cfg.SMSEnabled {
		sms = services.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.SMSDefaultCountryCode)
	} else {
		sms = services.NewLogSMS(log)
		log.Warn("SMS_ENABLED=false, outbound SMS is logged only")
	}

	// Initialize services
	hub := realtime.NewHub(log)
	notifier := services.NewNotifier(sms, push, hub, cfg.SMSTimeout, cfg.PushTimeout, log)
	checker := services.NewScanChecker(postgres, log)
	geofenceSvc := services.NewGeofenceService(postgres, checker, log)
	locationSvc := services.NewLocationService(postgres, checker, cfg.AnonymousLocationUserID, log)
	incidentSvc := services.NewIncidentService(postgres, postgres, notifier, cfg.EmergencyContactNumber, log)
	zoneGen := services.NewZoneGenerator(services.ZoneGenConfig{
		APIKey:   cfg.GeminiAPIKey,
		Model:    cfg.GeminiModel,
		Timeout:  cfg.GeminiTimeout,
		RPS:      cfg.GeminiRPS,
		CacheTTL: cfg.ZoneCacheTTL,
	}, redis, geofenceSvc, log)

	if cfg.EmergencyContactNumber == "" {
		log.Warn("EMERGENCY_CONTACT_NUMBER is not set, incident creation will fail")
	}

	if err := handlers.RegisterValidators(); err != nil {
		log.Fatalf("Failed to register validators: %v", err)
	}

	router := setupRouter(routes{
		auth:      middleware.NewAuth(cfg.JWTSecret),
		hub:       hub,
		ws:        realtime.NewHandler(hub, cfg.AllowedWSOrigins, incidentSvc.CanJoinRoom, postgres, log),
		locations: handlers.NewLocationHandler(locationSvc, redis, cfg.LocationRateLimit, cfg.LocationRateWindow, log),
		geofences: handlers.NewGeofenceHandler(geofenceSvc, zoneGen, log),
		incidents: handlers.NewIncidentHandler(incidentSvc, postgres, log),
		profile:   handlers.NewProfileHandler(postgres, log),
	}, log)

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Infof("API server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("server stopped gracefully")
}

type routes struct {
	auth      *middleware.Auth
	hub       *realtime.Hub
	ws        *realtime.Handler
	locations *handlers.LocationHandler
	geofences *handlers.GeofenceHandler
	incidents *handlers.IncidentHandler
	profile   *handlers.ProfileHandler
}

func setupRouter(r routes, log logrus.FieldLogger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(log))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"service":            "safety-api",
			"time":               time.Now().Format(time.RFC3339),
			"realtime_clients":   r.hub.ClientCount(),
			"authorities_online": r.hub.RoomSize(realtime.AuthoritiesRoom),
		})
	})

	router.GET("/ws", r.auth.WebSocketAuth(), r.ws.ServeWS)

	api := router.Group("/api")

	location := api.Group("/location")
	{
		location.POST("/update", r.auth.OptionalAuth(), r.locations.UpdateLocation)
		location.GET("/history", r.auth.AuthRequired(), r.locations.History)
		location.GET("/all-tourists", r.auth.AuthRequired(), middleware.AuthorityRequired(), r.locations.AllTourists)
	}

	geofence := api.Group("/geofence")
	{
		geofence.GET("/list", r.geofences.List)
		geofence.POST("/check", r.geofences.Check)
		geofence.POST("/generate-nearby", r.auth.OptionalAuth(), r.geofences.GenerateNearby)

		authority := geofence.Group("", r.auth.AuthRequired(), middleware.AuthorityRequired())
		authority.POST("", r.geofences.Create)
		authority.POST("/:id/deactivate", r.geofences.Deactivate)
		authority.POST("/:id/activate", r.geofences.Activate)
	}

	incident := api.Group("/incident", r.auth.AuthRequired())
	{
		incident.POST("/panic", r.incidents.Panic)
		incident.POST("/report", r.incidents.Report)
		incident.GET("/list", r.incidents.List)
		incident.GET("/:id", r.incidents.Get)
		incident.POST("/:id/respond", r.incidents.Respond)
		incident.POST("/:id/send-message", r.incidents.SendMessage)
	}

	user := api.Group("/user", r.auth.AuthRequired())
	{
		user.GET("/profile", r.profile.GetProfile)
		user.PUT("/profile", r.profile.UpdateProfile)
	}

	return router
}
