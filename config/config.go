package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yashrajoria/equipment-workflow-service/logger"
	awspkg "github.com/yashrajoria/equipment-workflow-service/pkg/aws"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all configuration for the workflow service.
type Config struct {
	Port           string
	Env            string
	ERPBaseURL     string
	RequestTimeout time.Duration

	// ERPServiceToken authenticates ERP calls made without a caller token.
	ERPServiceToken string
	JWTSecret       string

	RedisURL       string
	IdempotencyTTL time.Duration
	SessionTTL     time.Duration
	SessionMax     int

	RateLimitRPM   int
	RateLimitBurst int
	AllowedOrigins []string

	UseSecrets bool
	SecretName string

	CloudWatchEnabled   bool
	CloudWatchNamespace string
	WorkflowSNSTopicARN string
}

// Load reads configuration from .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Log.Info("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:                getEnv("PORT", "8095"),
		Env:                 getEnv("APP_ENV", "development"),
		ERPBaseURL:          os.Getenv("ERP_API_URL"),
		RequestTimeout:      getDuration("REQUEST_TIMEOUT", 10*time.Second),
		ERPServiceToken:     os.Getenv("ERP_SERVICE_TOKEN"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		RedisURL:            os.Getenv("REDIS_URL"),
		IdempotencyTTL:      getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		SessionTTL:          getDuration("SESSION_TTL", 30*time.Minute),
		SessionMax:          getInt("SESSION_MAX", 1000),
		RateLimitRPM:        getInt("RATE_LIMIT_RPM", 300),
		RateLimitBurst:      getInt("RATE_LIMIT_BURST", 50),
		AllowedOrigins:      splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		UseSecrets:          os.Getenv("AWS_USE_SECRETS") == "true",
		SecretName:          getEnv("AWS_SECRET_NAME", "equipment-workflow/ERP_CREDENTIALS"),
		CloudWatchEnabled:   os.Getenv("CLOUDWATCH_ENABLED") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "EquipmentWorkflow"),
		WorkflowSNSTopicARN: os.Getenv("WORKFLOW_SNS_TOPIC_ARN"),
	}

	if cfg.ERPBaseURL == "" {
		return nil, fmt.Errorf("ERP_API_URL is not set")
	}
	if cfg.SessionMax <= 0 {
		return nil, fmt.Errorf("SESSION_MAX must be positive, got %d", cfg.SessionMax)
	}
	return cfg, nil
}

// ApplySecrets overrides credentials with the values stored in Secrets
// Manager under SecretName. Missing keys leave the current value.
func (c *Config) ApplySecrets(ctx context.Context, secrets awspkg.SecretGetter) error {
	m, err := awspkg.SecretMap(ctx, secrets, c.SecretName)
	if err != nil {
		return err
	}
	if v := m["ERP_SERVICE_TOKEN"]; v != "" {
		c.ERPServiceToken = v
	}
	if v := m["JWT_SECRET"]; v != "" {
		c.JWTSecret = v
	}
	if v := m["REDIS_URL"]; v != "" {
		c.RedisURL = v
	}
	logger.Log.Info("configuration overridden from secrets manager", zap.String("secret", c.SecretName))
	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.Log.Warn("invalid duration, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", fallback),
		)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		logger.Log.Warn("invalid integer, using default", zap.String("key", key), zap.String("value", raw))
		return fallback
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSuffix(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
