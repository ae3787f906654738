package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noam-katz/lomda-api/internal/broker"
	"github.com/noam-katz/lomda-api/internal/config"
	"github.com/noam-katz/lomda-api/internal/database"
	"github.com/noam-katz/lomda-api/internal/handler"
	"github.com/noam-katz/lomda-api/internal/middleware"
	"github.com/noam-katz/lomda-api/internal/repository"
	"github.com/noam-katz/lomda-api/internal/router"
	"github.com/noam-katz/lomda-api/internal/service"
	cloud "github.com/noam-katz/lomda-api/pkg/cloudinary"
	"github.com/noam-katz/lomda-api/pkg/localstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured, chat fan-out limited to this node")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = broker.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats not configured, entity events limited to redis")
	}

	storage, err := buildStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize upload storage: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	bus := broker.NewBus(natsConn, redisClient, cfg.ChatChannelBase, logger)

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	discussionRepo := repository.NewDiscussionRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	authService := service.NewAuthService(userRepo, validate, cfg.JWTSecret, cfg.TokenTTL, cfg.AdminCodes, logger)
	userService := service.NewUserService(userRepo, validate, logger)
	courseService := service.NewCourseService(courseRepo, userRepo, bus, validate, logger)
	discussionService := service.NewDiscussionService(discussionRepo, courseRepo, bus, validate, logger)
	commentService := service.NewCommentService(commentRepo, discussionRepo, courseRepo, bus, validate, logger)
	chatService := service.NewChatService(messageRepo, discussionRepo, userRepo, redisClient, cfg.ChatChannelBase, natsConn, validate, logger)
	uploadService := service.NewUploadService(storage, uploadRepo, cfg.UploadMaxSizeMB, logger)

	authHandler := handler.NewAuthHandler(authService, validate, logger)
	userHandler := handler.NewUserHandler(userService, uploadService, validate, logger)
	courseHandler := handler.NewCourseHandler(courseService, uploadService, validate, logger)
	forumHandler := handler.NewForumHandler(discussionService, commentService, courseService, uploadService, validate, logger)
	chatHandler := handler.NewChatHandler(chatService, uploadService, validate, logger)
	adminHandler := handler.NewAdminHandler(userService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:   authHandler,
		UserHandler:   userHandler,
		CourseHandler: courseHandler,
		ForumHandler:  forumHandler,
		ChatHandler:   chatHandler,
		AdminHandler:  adminHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
		OptionalJWT:   middleware.JWTOptional(cfg.JWTSecret),
	})

	runCtx, stopConsumers := context.WithCancel(context.Background())
	defer stopConsumers()
	chatService.Start(runCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func buildStorage(cfg config.Config, logger zerolog.Logger) (service.FileStorage, error) {
	if cfg.UploadBackend == config.UploadBackendCloudinary {
		return cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
	}
	return localstore.New(cfg.UploadDir, cfg.UploadBaseURL, logger)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
