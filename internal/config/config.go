package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatafisha/claims-service/internal/platform/envconfig"
)

type Config struct {
	Port         string `validate:"required,numeric"`
	GCPProjectID string `validate:"required"`
	DataStore    string `validate:"required,oneof=firestore memory"`
	LogLevel     string
	Auth         AuthConfig
	Events       EventsConfig
	Firestore    FirestoreConfig
	Redis        RedisConfig
	Reconciler   ReconcilerConfig
}

type AuthConfig struct {
	Mode         string `validate:"required,oneof=firebase noop"`
	EmulatorHost string
}

// EventsConfig identifies the push deliveries accepted on the trigger route.
type EventsConfig struct {
	Audience       string
	ServiceAccount string `validate:"omitempty,email"`
}

type FirestoreConfig struct {
	DatabaseID      string `validate:"required"`
	UsersCollection string `validate:"required,excludes=/"`
	EmulatorHost    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DedupTTL time.Duration `validate:"gt=0"`
}

type ReconcilerConfig struct {
	Interval    time.Duration `validate:"gte=0"`
	BatchSize   int           `validate:"gt=0"`
	Concurrency int           `validate:"gt=0"`
}

func Load() (Config, error) {
	cfg := Config{
		Port:         envconfig.Get("PORT", "8080"),
		GCPProjectID: envconfig.Get("GCP_PROJECT_ID", envconfig.Get("GOOGLE_CLOUD_PROJECT", "chatafisha-dev")),
		DataStore:    strings.ToLower(envconfig.Get("DATASTORE", "firestore")),
		LogLevel:     envconfig.Get("LOG_LEVEL", "info"),
		Auth: AuthConfig{
			Mode:         strings.ToLower(envconfig.Get("AUTH_MODE", "firebase")),
			EmulatorHost: envconfig.Get("FIREBASE_AUTH_EMULATOR_HOST", ""),
		},
		Events: EventsConfig{
			Audience:       envconfig.Get("EVENTS_AUDIENCE", ""),
			ServiceAccount: envconfig.Get("EVENTS_SERVICE_ACCOUNT", ""),
		},
		Firestore: FirestoreConfig{
			DatabaseID:      envconfig.Get("FIRESTORE_DATABASE", "(default)"),
			UsersCollection: envconfig.Get("USERS_COLLECTION", "users"),
			EmulatorHost:    envconfig.Get("FIRESTORE_EMULATOR_HOST", ""),
		},
		Redis: RedisConfig{
			Addr:     envconfig.Get("REDIS_ADDR", ""),
			Password: envconfig.Get("REDIS_PASSWORD", ""),
			DedupTTL: envconfig.GetDuration("DEDUP_TTL", 24*time.Hour),
		},
		Reconciler: ReconcilerConfig{
			Interval:    envconfig.GetDuration("RECONCILE_INTERVAL", 0),
			BatchSize:   envconfig.GetInt("RECONCILE_BATCH", 100),
			Concurrency: envconfig.GetInt("RECONCILE_CONCURRENCY", 4),
		},
	}

	if err := envconfig.Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := checkAuth(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// checkAuth rejects settings that would leave real user data behind unverified tokens.
func checkAuth(cfg Config) error {
	switch {
	case cfg.Auth.Mode == "noop" && cfg.DataStore != "memory":
		return errors.New("AUTH_MODE=noop is only allowed with DATASTORE=memory")
	case cfg.Auth.Mode == "firebase" && cfg.DataStore == "memory":
		return errors.New("DATASTORE=memory requires AUTH_MODE=noop")
	case cfg.Auth.Mode == "firebase" && (cfg.Events.Audience == "" || cfg.Events.ServiceAccount == ""):
		return errors.New("EVENTS_AUDIENCE and EVENTS_SERVICE_ACCOUNT are required with AUTH_MODE=firebase")
	}
	return nil
}
