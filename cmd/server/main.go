package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/idtoken"

	"github.com/chatafisha/claims-service/internal/claims"
	"github.com/chatafisha/claims-service/internal/config"
	"github.com/chatafisha/claims-service/internal/dedup"
	"github.com/chatafisha/claims-service/internal/httpapi"
	sharedauth "github.com/chatafisha/claims-service/internal/platform/auth"
	"github.com/chatafisha/claims-service/internal/platform/logging"
	sharedserver "github.com/chatafisha/claims-service/internal/platform/server"
	"github.com/chatafisha/claims-service/internal/trigger"
)

const serviceName = "claims-service"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config error: %w", err))
	}

	logger := logging.NewLogger(serviceName, cfg.LogLevel)

	var (
		identities claims.IdentityProvider
		users      claims.UserStore
		tokens     sharedauth.IDTokenVerifier
	)

	switch cfg.DataStore {
	case "memory":
		logger.Warn("using in-memory identity provider and user store; data is lost on restart")
		identities = claims.NewMemoryIdentityProvider()
		users = claims.NewMemoryRepository()
	default:
		if cfg.Firestore.EmulatorHost != "" {
			if err := os.Setenv("FIRESTORE_EMULATOR_HOST", cfg.Firestore.EmulatorHost); err != nil {
				panic(fmt.Errorf("set FIRESTORE_EMULATOR_HOST: %w", err))
			}
		}
		if cfg.Auth.EmulatorHost != "" {
			if err := os.Setenv("FIREBASE_AUTH_EMULATOR_HOST", cfg.Auth.EmulatorHost); err != nil {
				panic(fmt.Errorf("set FIREBASE_AUTH_EMULATOR_HOST: %w", err))
			}
		}

		client, err := firestore.NewClientWithDatabase(ctx, cfg.GCPProjectID, cfg.Firestore.DatabaseID)
		if err != nil {
			panic(fmt.Errorf("firestore client: %w", err))
		}
		defer client.Close()

		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.GCPProjectID})
		if err != nil {
			panic(fmt.Errorf("firebase app: %w", err))
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			panic(fmt.Errorf("firebase auth client: %w", err))
		}

		identities = claims.NewFirebaseIdentityProvider(authClient)
		users = claims.NewFirestoreRepository(client, cfg.Firestore.UsersCollection)
		tokens = authClient
	}

	verifier, err := sharedauth.NewVerifier(sharedauth.Mode(cfg.Auth.Mode), tokens)
	if err != nil {
		panic(fmt.Errorf("auth verifier error: %w", err))
	}

	// In noop mode (memory store only) the trigger route takes any bearer token.
	pushVerifier := verifier
	if sharedauth.Mode(cfg.Auth.Mode) == sharedauth.ModeFirebase {
		validator, err := idtoken.NewValidator(ctx)
		if err != nil {
			panic(fmt.Errorf("push token validator: %w", err))
		}
		pushVerifier, err = sharedauth.NewPushVerifier(validator, cfg.Events.Audience, cfg.Events.ServiceAccount)
		if err != nil {
			panic(fmt.Errorf("push verifier error: %w", err))
		}
	}

	seen := dedup.NewMemoryStore(cfg.Redis.DedupTTL)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			pingCancel()
			panic(fmt.Errorf("redis ping failed: %w", err))
		}
		pingCancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close error", slog.Any("error", err))
			}
		}()
		seen = dedup.NewRedisStore(redisClient, cfg.Redis.DedupTTL)
	}

	synchronizer := claims.NewSynchronizer(identities, users, logger)
	if repo, ok := users.(*claims.MemoryRepository); ok {
		// No trigger platform in memory mode; feed writes straight to the synchronizer.
		repo.OnChange(func(ctx context.Context, change claims.DocumentChange) {
			synchronizer.Handle(ctx, change)
		})
	}

	claims.NewReconciler(identities, users, claims.ReconcilerConfig{
		Interval:    cfg.Reconciler.Interval,
		BatchSize:   cfg.Reconciler.BatchSize,
		Concurrency: cfg.Reconciler.Concurrency,
	}, logger).Start(ctx)

	service := claims.NewService(identities, users, logger)
	decoder := trigger.NewDecoder(cfg.Firestore.UsersCollection)

	router := sharedserver.NewRouter(serviceName, func(r chi.Router) {
		httpapi.RegisterRoutes(r, service, verifier, logger)
		httpapi.RegisterEventRoutes(r, pushVerifier, decoder, seen, synchronizer, logger)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	if err := sharedserver.Run(ctx, srv, sharedserver.DefaultShutdownGrace, logger); err != nil {
		panic(err)
	}
}
