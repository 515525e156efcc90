package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Events    EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig governs the scheduling engine: horizon and consolidation
// defaults, solver deadline and default objective weights. Parishes may
// override individual weights; zero-valued overrides fall back to these.
type SchedulerConfig struct {
	DefaultHorizonDays int
	ConsolidationDays  int
	SolveTimeout       time.Duration
	SolverSeed         int64
	Workers            int
	QueueSize          int
	MaxRetries         int
	RetryDelay         time.Duration
	QuickFillCacheTTL  time.Duration

	PreferenceWeight   int
	StabilityPenalty   int
	LoadBalanceWeight  int
	CreditWeight       int
	CreditCap          int
	ReservePenalty     int
	FillBonus          int
	ReliabilityPenalty int
	MaxServicesPerWeek int
	MinRestMinutes     int
}

// EventsConfig controls domain event publication.
type EventsConfig struct {
	Enabled bool
	Channel string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		DefaultHorizonDays: v.GetInt("SCHEDULER_HORIZON_DAYS"),
		ConsolidationDays:  v.GetInt("SCHEDULER_CONSOLIDATION_DAYS"),
		SolveTimeout:       parseDuration(v.GetString("SCHEDULER_SOLVE_TIMEOUT"), 15*time.Second),
		SolverSeed:         v.GetInt64("SCHEDULER_SOLVER_SEED"),
		Workers:            v.GetInt("SCHEDULER_WORKERS"),
		QueueSize:          v.GetInt("SCHEDULER_QUEUE_SIZE"),
		MaxRetries:         v.GetInt("SCHEDULER_MAX_RETRIES"),
		RetryDelay:         parseDuration(v.GetString("SCHEDULER_RETRY_DELAY"), 5*time.Second),
		QuickFillCacheTTL:  parseDuration(v.GetString("SCHEDULER_QUICK_FILL_CACHE_TTL"), 2*time.Minute),
		PreferenceWeight:   v.GetInt("SCHEDULER_WEIGHT_PREFERENCE"),
		StabilityPenalty:   v.GetInt("SCHEDULER_WEIGHT_STABILITY"),
		LoadBalanceWeight:  v.GetInt("SCHEDULER_WEIGHT_LOAD_BALANCE"),
		CreditWeight:       v.GetInt("SCHEDULER_WEIGHT_CREDIT"),
		CreditCap:          v.GetInt("SCHEDULER_CREDIT_CAP"),
		ReservePenalty:     v.GetInt("SCHEDULER_RESERVE_PENALTY"),
		FillBonus:          v.GetInt("SCHEDULER_FILL_BONUS"),
		ReliabilityPenalty: v.GetInt("SCHEDULER_RELIABILITY_PENALTY"),
		MaxServicesPerWeek: v.GetInt("SCHEDULER_MAX_SERVICES_PER_WEEK"),
		MinRestMinutes:     v.GetInt("SCHEDULER_MIN_REST_MINUTES"),
	}

	cfg.Events = EventsConfig{
		Enabled: v.GetBool("ENABLE_EVENTS"),
		Channel: v.GetString("EVENTS_CHANNEL"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "acolyte_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_HORIZON_DAYS", 60)
	v.SetDefault("SCHEDULER_CONSOLIDATION_DAYS", 7)
	v.SetDefault("SCHEDULER_SOLVE_TIMEOUT", "15s")
	v.SetDefault("SCHEDULER_SOLVER_SEED", 1)
	v.SetDefault("SCHEDULER_WORKERS", 1)
	v.SetDefault("SCHEDULER_QUEUE_SIZE", 16)
	v.SetDefault("SCHEDULER_MAX_RETRIES", 3)
	v.SetDefault("SCHEDULER_RETRY_DELAY", "5s")
	v.SetDefault("SCHEDULER_QUICK_FILL_CACHE_TTL", "2m")
	v.SetDefault("SCHEDULER_WEIGHT_PREFERENCE", 1)
	v.SetDefault("SCHEDULER_WEIGHT_STABILITY", 10)
	v.SetDefault("SCHEDULER_WEIGHT_LOAD_BALANCE", 2)
	v.SetDefault("SCHEDULER_WEIGHT_CREDIT", 1)
	v.SetDefault("SCHEDULER_CREDIT_CAP", 10)
	v.SetDefault("SCHEDULER_RESERVE_PENALTY", 1000)
	v.SetDefault("SCHEDULER_FILL_BONUS", 50)
	v.SetDefault("SCHEDULER_RELIABILITY_PENALTY", 0)
	v.SetDefault("SCHEDULER_MAX_SERVICES_PER_WEEK", 0)
	v.SetDefault("SCHEDULER_MIN_REST_MINUTES", 0)

	v.SetDefault("ENABLE_EVENTS", false)
	v.SetDefault("EVENTS_CHANNEL", "scheduler.events")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
