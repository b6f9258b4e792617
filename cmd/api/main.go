package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eduretrieve-api/internal/application/account"
	"github.com/eduretrieve-api/internal/application/session"
	"github.com/eduretrieve-api/internal/application/signup"
	"github.com/eduretrieve-api/internal/config"
	"github.com/eduretrieve-api/internal/infrastructure/dynamo"
	"github.com/eduretrieve-api/internal/infrastructure/google"
	jwtinfra "github.com/eduretrieve-api/internal/infrastructure/jwt"
	"github.com/eduretrieve-api/internal/infrastructure/memory"
	redisinfra "github.com/eduretrieve-api/internal/infrastructure/redis"
	"github.com/eduretrieve-api/internal/infrastructure/smtp"
	"github.com/eduretrieve-api/internal/metrics"
	transporthttp "github.com/eduretrieve-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb client: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	// Signup ends in a signed session, so the JWT keys are required.
	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	store, closeStore := newVerificationStore(ctx, cfg, dynamoClient, collector)
	defer closeStore()

	mailer := smtp.NewBreakerMailer(smtp.NewMailer(cfg), smtp.BreakerSettings{
		FailureThreshold: cfg.MailBreakerFailures,
		OpenTimeout:      cfg.MailBreakerTimeout,
		OnStateChange:    collector.RecordBreakerState,
	})

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users, cfg.DynamoTables.Profiles)
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        userRepo,
		SessionRepo:     dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		JWTProvider:     jwtProvider,
		RefreshTokenDur: cfg.RefreshTokenExpiry(),
	})
	accountSvc := account.NewService(account.ServiceDeps{
		UserRepo:    userRepo,
		ProfileRepo: dynamo.NewProfileRepo(dynamoClient, cfg.DynamoTables.Profiles),
		Sessions:    sessionSvc,
	})
	signupSvc := signup.NewService(signup.ServiceDeps{
		Store: store,
		Exchanger: google.NewExchanger(google.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Timeout:      cfg.GoogleHTTPTimeout,
		}),
		Accounts:   accountSvc,
		Dispatcher: signup.NewEmailDispatcher(mailer, collector),
		Metrics:    collector,
	})

	deps := &transporthttp.Deps{
		Signup:        signupSvc,
		Accounts:      accountSvc,
		Sessions:      sessionSvc,
		TokenVerifier: jwtProvider,
		Metrics:       collector,
		Gatherer:      reg,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, verifications=%s)", cfg.AppPort, cfg.AppEnv, cfg.VerificationBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server stopped")
}

// newVerificationStore picks the pending-verification backend named in cfg.
// The returned func releases backend resources.
func newVerificationStore(ctx context.Context, cfg *config.Config, client dynamo.API, collector *metrics.Collector) (signup.VerificationStore, func()) {
	switch cfg.VerificationBackend {
	case config.VerificationBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		return redisinfra.NewVerificationStore(rdb), func() { _ = rdb.Close() }
	case config.VerificationBackendDynamo:
		return dynamo.NewVerificationRepo(client, cfg.DynamoTables.Verifications), func() {}
	case config.VerificationBackendMemory, "":
		mem := memory.NewVerificationStore(time.Now)
		go mem.Run(ctx, cfg.VerificationSweepInterval, collector.RecordSwept)
		return mem, func() {}
	default:
		log.Fatalf("unknown VERIFICATION_BACKEND %q", cfg.VerificationBackend)
		return nil, nil
	}
}
