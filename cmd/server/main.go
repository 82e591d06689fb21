package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/growlytics/socialsync/configs"
	"github.com/growlytics/socialsync/internal/api/handlers"
	"github.com/growlytics/socialsync/internal/api/middleware"
	job "github.com/growlytics/socialsync/internal/jobs"
	"github.com/growlytics/socialsync/internal/queue"
	"github.com/growlytics/socialsync/internal/repository"
	"github.com/growlytics/socialsync/internal/service"
	"github.com/growlytics/socialsync/pkg/crypto"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	vault, err := crypto.NewVault(cfg.TokenEncryptionKey, cfg.AppEnv)
	if err != nil {
		log.Fatalf("Token vault initialization failed: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	socialAccountRepo := repository.NewSocialAccountRepository(db)
	socialPostRepo := repository.NewSocialPostRepository(db)
	socialMetricRepo := repository.NewSocialMetricRepository(db)
	socialCommentRepo := repository.NewSocialCommentRepository(db)
	syncLogRepo := repository.NewSyncLogRepository(db)

	facebookService := service.NewFacebookService(*cfg, socialAccountRepo, socialMetricRepo, socialCommentRepo, syncLogRepo, vault)
	instagramService := service.NewInstagramService(*cfg, socialAccountRepo, socialMetricRepo, socialCommentRepo, syncLogRepo, vault)
	youtubeService := service.NewYoutubeService(*cfg, socialAccountRepo, socialMetricRepo, socialCommentRepo, syncLogRepo, vault)
	oauthService := service.NewOAuthService(*cfg, socialAccountRepo, vault)
	adAccountService := service.NewAdAccountService(socialAccountRepo, vault)
	mediaService := service.NewMediaService(*cfg)

	publishWorker := job.NewScheduledPostsWorker(socialPostRepo, facebookService, instagramService, youtubeService)
	syncWorker := job.NewMetricsSyncWorker(socialAccountRepo, facebookService, instagramService, youtubeService)
	tokenRefreshJob := job.NewTokenRefreshJob(socialAccountRepo, oauthService)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	connect := handlers.NewConnectHandler(oauthService, socialAccountRepo, *cfg)
	app.Get("/auth/:platform/callback", connect.Callback)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/connect/:platform", connect.Connect)
	api.Get("/accounts", connect.ListAccounts)
	api.Delete("/accounts/:id", connect.DisconnectAccount)

	publish := handlers.NewPublishHandler(socialPostRepo, client)
	api.Post("/posts/:id/publish", publish.PublishNow)

	sync := handlers.NewSyncHandler(socialAccountRepo, syncWorker, client)
	api.Post("/accounts/:id/sync", sync.SyncAccount)
	api.Post("/sync/organization", sync.SyncOrganization)
	api.Get("/sync/stats", sync.SyncStats)

	adAccounts := handlers.NewAdAccountHandler(adAccountService)
	api.Get("/accounts/:id/ad-accounts", adAccounts.ListAdAccounts)
	api.Post("/accounts/:id/ad-account", adAccounts.SaveAdAccount)
	api.Get("/accounts/:id/ad-account/status", adAccounts.GetAdAccountStatus)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media", media.UploadMedia)

	queueW := queue.NewQueue(publishWorker, syncWorker)

	c := cron.New()
	c.AddFunc("@every 00h05m00s", publishWorker.ProcessDuePosts)
	c.AddFunc("@every 01h00m00s", syncWorker.SyncAllAccounts)
	c.AddFunc("@every 00h30m00s", tokenRefreshJob.RefreshTokens)
	c.Start()

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishNow, queueW.HandlePublishNowTask)
		mux.HandleFunc(queue.TaskTypeSyncAccount, queueW.HandleSyncAccountTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
