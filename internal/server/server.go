package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bazhay.app/wishlist/internal/config"
	"bazhay.app/wishlist/internal/middleware"
	notifHandler "bazhay.app/wishlist/internal/modules/notification/delivery/http"
	notifWs "bazhay.app/wishlist/internal/modules/notification/delivery/ws"
	"bazhay.app/wishlist/internal/modules/notification/dispatcher"
	notifRepo "bazhay.app/wishlist/internal/modules/notification/repository"
	notifService "bazhay.app/wishlist/internal/modules/notification/service"
	premiumRepo "bazhay.app/wishlist/internal/modules/premium/repository"
	premium "bazhay.app/wishlist/internal/modules/premium/service"
	resHandler "bazhay.app/wishlist/internal/modules/reservation/delivery/http"
	resRepo "bazhay.app/wishlist/internal/modules/reservation/repository"
	reservation "bazhay.app/wishlist/internal/modules/reservation/service"
	subRepo "bazhay.app/wishlist/internal/modules/subscription/repository"
	subscription "bazhay.app/wishlist/internal/modules/subscription/service"
	userRepo "bazhay.app/wishlist/internal/modules/user/repository"
	wishRepo "bazhay.app/wishlist/internal/modules/wish/repository"
	"bazhay.app/wishlist/pkg/auth"
	"bazhay.app/wishlist/pkg/metrics"
	"bazhay.app/wishlist/pkg/pubsub"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps carries the process-level connections. Redis and AMQP are optional
// unless the configured scheduler backend needs them.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	AMQPChannel dispatcher.AMQPChannel
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	dispatcher *dispatcher.Dispatcher
	sweeper    *dispatcher.Sweeper
	gateway    *notifWs.Gateway
	cfg        *config.Config
	log        *zap.Logger
}

var ErrMissingBackend = errors.New("scheduler backend not available")

func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	db := deps.DB

	// Repositories
	userRepository := userRepo.NewUserRepository(db)
	wishRepository := wishRepo.NewWishRepository(db)
	reservationRepository := resRepo.NewReservationRepository(db)
	notificationRepository := notifRepo.NewNotificationRepository(db)
	premiumRepository := premiumRepo.NewPremiumRepository(db)
	subscriptionRepository := subRepo.NewSubscriptionRepository(db)

	// Channel layer
	var broker pubsub.Broker
	if deps.Redis != nil {
		broker = pubsub.NewRedisBroker(deps.Redis)
	} else {
		broker = pubsub.NewMemoryBroker()
	}

	scheduler, err := newScheduler(cfg, deps, log)
	if err != nil {
		return nil, err
	}

	disp := dispatcher.New(notificationRepository, broker, scheduler, deps.Metrics, log)
	sweeper := dispatcher.NewSweeper(notificationRepository, disp, log)

	// Services
	var premiumChecker premium.Checker
	if cfg.PremiumServiceURL != "" {
		premiumChecker = premium.NewRemoteChecker(cfg.PremiumServiceURL, log)
	} else {
		premiumChecker = premium.NewRepositoryChecker(premiumRepository)
	}
	accessChecker := subscription.NewChecker(subscriptionRepository)

	notificationSvc := notifService.NewNotificationService(notificationRepository, disp, log)
	reservationSvc := reservation.NewReservationService(
		reservationRepository,
		wishRepository,
		userRepository,
		notificationSvc,
		premiumChecker,
		accessChecker,
		deps.Metrics,
		log,
		reservation.Options{FulfillOnClose: cfg.WishFulfillOnClose},
	)

	// Delivery
	tokenParser := auth.NewTokenParser(cfg.JWTSecret)
	reservationHandler := resHandler.NewReservationHandler(reservationSvc, log)
	notificationHandler := notifHandler.NewNotificationHandler(notificationSvc, log)
	gateway := notifWs.NewGateway(tokenParser, userRepository, notificationSvc, broker, deps.Metrics, log, notifWs.Options{
		PingInterval:   cfg.WSPingInterval,
		AllowedOrigins: cfg.Origins(),
	})

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	setupCORS(router, cfg.Origins())

	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	authMiddleware := middleware.NewAuthMiddleware(tokenParser, premiumChecker, log)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// The live endpoint authenticates after the upgrade so it can answer with close codes.
	router.GET("/ws/notifications", gateway.Handle)

	protected := router.Group("/api")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Reservation routes
		protected.POST("/reservations", reservationHandler.Reserve)
		protected.GET("/reservations", reservationHandler.GetForWish)
		protected.POST("/reservations/:id/select_user", authMiddleware.RequirePremium(), reservationHandler.SelectUser)
		protected.DELETE("/reservations/:id", reservationHandler.Cancel)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
	}

	admin := protected.Group("/admin")
	admin.Use(authMiddleware.RequireAdmin(cfg.AdminUserIDs))
	{
		admin.POST("/notifications", notificationHandler.CreateNotification)
		admin.DELETE("/notifications/:id", notificationHandler.CancelNotification)
	}

	return &Server{
		engine:     router,
		db:         db,
		dispatcher: disp,
		sweeper:    sweeper,
		gateway:    gateway,
		cfg:        cfg,
		log:        log,
	}, nil
}

func newScheduler(cfg *config.Config, deps Deps, log *zap.Logger) (dispatcher.Scheduler, error) {
	switch cfg.SchedulerBackend {
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("%w: redis requires REDIS_URL", ErrMissingBackend)
		}
		return dispatcher.NewRedisScheduler(deps.Redis, cfg.SchedulerPollInterval, log), nil
	case "amqp":
		if deps.AMQPChannel == nil {
			return nil, fmt.Errorf("%w: amqp requires AMQP_URL", ErrMissingBackend)
		}
		return dispatcher.NewAMQPScheduler(deps.AMQPChannel, log)
	default:
		return dispatcher.NewMemoryScheduler(log), nil
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start launches the delivery loop and the overdue sweep. Both stop with ctx.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		if err := s.dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error("dispatcher stopped", zap.Error(err))
		}
	}()

	if s.cfg.SweepSchedule == "" {
		return nil
	}
	if err := s.sweeper.Start(s.cfg.SweepSchedule); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	go func() {
		<-ctx.Done()
		s.sweeper.Stop()
	}()
	return nil
}

func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := s.httpServer(addr)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

// httpServer closes live sessions on Shutdown.
func (s *Server) httpServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.gateway.Close)
	return srv
}

func setupCORS(router *gin.Engine, origins []string) {
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
