package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/cache"
	"clinic-portal-server/internal/config"
	"clinic-portal-server/internal/diagnoses"
	"clinic-portal-server/internal/events"
	"clinic-portal-server/internal/handlers"
	"clinic-portal-server/internal/logger"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/notify"
	"clinic-portal-server/internal/routes"
	"clinic-portal-server/internal/signup"
	"clinic-portal-server/internal/store"
)

// remote is the backend the portal runs against.
type remote struct {
	diagnoses backend.DiagnosisStore
	verifier  backend.PatientVerifier
	accounts  backend.AccountLinker
	auth      backend.Authenticator
}

func newRemote(cfg *config.Config, zl *zap.Logger) (*remote, error) {
	if cfg.Backend.Mode == config.BackendModeDatabase {
		db, err := models.InitDB(models.DatabaseConfig{
			Driver:      cfg.Database.Driver,
			DSN:         cfg.Database.DSN,
			AutoMigrate: cfg.Environment != "production",
		})
		if err != nil {
			return nil, fmt.Errorf("error connecting to database: %w", err)
		}
		accounts := store.NewAccountRepository(db)
		return &remote{
			diagnoses: store.NewDiagnosisRepository(db),
			verifier:  accounts,
			accounts:  accounts,
			auth: store.NewAuthRepository(db, cfg.Backend.JWTSecret,
				time.Duration(cfg.JWTExpirationMinutes)*time.Minute),
		}, nil
	}

	client := backend.NewRESTClient(backend.RESTConfig{
		URL:            cfg.Backend.URL,
		AnonKey:        cfg.Backend.AnonKey,
		ServiceRoleKey: cfg.Backend.ServiceRoleKey,
		Timeout:        cfg.Backend.Timeout,
	}, zl)
	return &remote{diagnoses: client, verifier: client, accounts: client, auth: client}, nil
}

func newKV(cfg *config.Config, zl *zap.Logger) (cache.KV, error) {
	if cfg.Redis.Addr == "" {
		zl.Info("REDIS_ADDR not set, using in-memory store")
		return cache.NewMemoryKV(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return cache.NewRedisKV(client), nil
}

func newPublisher(cfg *config.Config, zl *zap.Logger) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		zl.Info("KAFKA_BROKERS not set, domain events disabled")
		return events.Nop{}
	}
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zl)
}

func main() {
	// Load environment variables; a missing .env is fine
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "clinic-portal-server")
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer zl.Sync()

	rm, err := newRemote(cfg, zl)
	if err != nil {
		zl.Fatal("backend setup failed", zap.Error(err))
	}
	kv, err := newKV(cfg, zl)
	if err != nil {
		zl.Fatal("cache setup failed", zap.Error(err))
	}
	publisher := newPublisher(cfg, zl)
	defer publisher.Close()

	notifier := notify.NewRequestNotifier(zl)
	diagnosisService := diagnoses.NewService(rm.diagnoses, kv, cfg.Cache.DiagnosesTTL, notifier, publisher, zl)
	signupService := signup.NewService(
		signup.NewFlowStore(kv, cfg.Cache.SignupFlowTTL),
		signup.Deps{Verifier: rm.verifier, Auth: rm.auth, Linker: rm.accounts},
		signup.PollConfig{
			Initial:  cfg.Signup.SessionPollInitial,
			Max:      cfg.Signup.SessionPollMax,
			Attempts: cfg.Signup.SessionPollAttempts,
		},
		notifier, publisher, zl,
	)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zl))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.Toasts())

	routes.SetupRoutes(router, routes.Handlers{
		Auth:      handlers.NewAuthHandler(rm.auth),
		Diagnoses: handlers.NewDiagnosisHandler(diagnosisService),
		Signup:    handlers.NewSignupHandler(signupService),
		Patient:   handlers.NewPatientHandler(rm.accounts, diagnosisService),
	}, cfg.Backend.JWTSecret)

	// Start server
	serverAddr := fmt.Sprintf(":%s", cfg.Port)
	zl.Info("server starting",
		zap.String("addr", serverAddr),
		zap.String("backend_mode", cfg.Backend.Mode),
	)
	if err := router.Run(serverAddr); err != nil {
		zl.Fatal("failed to start server", zap.Error(err))
	}
}
