package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/localserve/booking-backend/internal/config"
	"github.com/localserve/booking-backend/internal/database"
	"github.com/localserve/booking-backend/internal/events"
	"github.com/localserve/booking-backend/internal/handlers"
	"github.com/localserve/booking-backend/internal/lifecycle"
	"github.com/localserve/booking-backend/internal/middleware"
	"github.com/localserve/booking-backend/internal/models"
	"github.com/localserve/booking-backend/internal/scheduling"
	"github.com/localserve/booking-backend/internal/services"
	"github.com/localserve/booking-backend/pkg/jwt"
	"github.com/localserve/booking-backend/pkg/sms"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting LocalServe booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	location, err := cfg.Scheduling.Location()
	if err != nil {
		logger.Fatalf("Invalid SCHEDULE_TIMEZONE %q: %v", cfg.Scheduling.Timezone, err)
	}
	dayStart, err := models.ParseClock(cfg.Scheduling.DefaultDayStart)
	if err != nil {
		logger.Fatalf("Invalid BUSINESS_HOURS_START: %v", err)
	}
	dayEnd, err := models.ParseClock(cfg.Scheduling.DefaultDayEnd)
	if err != nil {
		logger.Fatalf("Invalid BUSINESS_HOURS_END: %v", err)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	bookingRepository := database.NewBookingRepository(db.DB)
	serviceRepository := database.NewServiceRepository(db.DB)
	workingHoursRepository := database.NewWorkingHoursRepository(db.DB)
	userRepository := database.NewUserRepository(db.DB)

	// Event publisher
	publisherCtx, cancelPublisher := context.WithTimeout(context.Background(), 10*time.Second)
	publisher, err := events.NewPublisher(publisherCtx, cfg.Events, logger)
	cancelPublisher()
	if err != nil {
		logger.Fatalf("Failed to initialize event publisher: %v", err)
	}

	// SMS gateway
	var smsGateway sms.Gateway
	if cfg.SMS.Mode == "production" {
		smsGateway = sms.NewDialogURLGateway(cfg.SMS.ESMSQK, cfg.SMS.Mask, logger)
	} else {
		smsGateway = sms.NewDevGateway(logger)
	}
	logger.WithField("gateway", smsGateway.GetName()).Info("SMS gateway ready")

	// Services
	logger.Info("Initializing services...")
	auditService := services.NewAuditService(db, logger, cfg.Audit.Enabled)
	notificationService := services.NewNotificationService(smsGateway, userRepository, location, logger)
	machine := lifecycle.NewMachine(lifecycle.Policy{
		CustomerCancelConfirmed: cfg.Policy.CustomerCancelConfirmed,
		CustomerCancelCutoff:    cfg.Policy.CustomerCancelCutoff,
	})
	guard := services.NewConflictGuard(bookingRepository, logger, cfg.Scheduling.ReservationTxTimeout)

	bookingService := services.NewBookingService(services.BookingServiceDeps{
		Bookings:     bookingRepository,
		Services:     serviceRepository,
		WorkingHours: workingHoursRepository,
		Users:        userRepository,
		Guard:        guard,
		Machine:      machine,
		Publisher:    publisher,
		Notifier:     notificationService,
		Auditor:      auditService,
		Logger:       logger,
	}, services.BookingServiceConfig{
		Location:       location,
		DefaultWindows: scheduling.DefaultWindows(dayStart, dayEnd),
		MaxRange:       time.Duration(cfg.Scheduling.MaxRangeDays) * 24 * time.Hour,
	})
	catalogueService := services.NewCatalogueService(serviceRepository, workingHoursRepository, logger)
	userService := services.NewUserService(userRepository, logger)

	var cronService *services.CronService
	if cfg.Audit.CronEnabled {
		cronService = services.NewCronService(auditService, bookingRepository, cfg.Audit.RetentionDays, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
		logger.Info("Cron service started")
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	serviceHandler := handlers.NewServiceHandler(catalogueService, bookingService, logger)
	settingsHandler := handlers.NewSettingsHandler(userService, catalogueService, logger)
	var cronAPI handlers.CronAPI
	if cronService != nil {
		cronAPI = cronService
	}
	adminHandler := handlers.NewAdminHandler(cronAPI, auditService, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	authenticated := []gin.HandlerFunc{
		middleware.AuthMiddleware(jwtService, logger),
		middleware.UserSync(userRepository, logger),
	}
	bookingWrites := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, logger).Middleware()
	providerOnly := middleware.RequireRole(models.UserRoleProvider)

	v1 := router.Group("/api/v1")
	{
		catalogue := v1.Group("/services")
		{
			catalogue.GET("", serviceHandler.ListServices)
			catalogue.GET("/:id", serviceHandler.GetService)
			catalogue.GET("/:id/availability", serviceHandler.GetAvailability)

			edits := catalogue.Group("", authenticated...)
			edits.Use(providerOnly)
			edits.POST("", serviceHandler.CreateService)
			edits.PUT("/:id", serviceHandler.UpdateService)
		}

		bookings := v1.Group("/bookings", authenticated...)
		{
			bookings.POST("", bookingWrites, bookingHandler.CreateBooking)
			bookings.GET("", bookingHandler.ListBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/transitions", bookingWrites, bookingHandler.TransitionBooking)
			bookings.GET("/:id/events", bookingHandler.GetBookingEvents)
			bookings.GET("/:id/payment-instructions", bookingHandler.GetPaymentInstructions)
		}

		me := v1.Group("/users/me", authenticated...)
		{
			me.GET("/settings", settingsHandler.GetSettings)
			me.PUT("/settings", settingsHandler.UpdateSettings)
		}

		provider := v1.Group("/providers/me", authenticated...)
		provider.Use(providerOnly)
		{
			provider.GET("/working-hours", settingsHandler.GetWorkingHours)
			provider.PUT("/working-hours", settingsHandler.ReplaceWorkingHours)
		}

		admin := v1.Group("/admin", middleware.RequireAdminKey(cfg.Admin.APIKeyHash, auditService, logger))
		{
			admin.GET("/cron/status", adminHandler.CronStatus)
			admin.POST("/cron/:job", adminHandler.RunCronJob)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close event publisher")
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		if userCtx, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = userCtx.UserID
			fields["role"] = userCtx.Role
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
