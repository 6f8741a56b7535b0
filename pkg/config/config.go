package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Inference InferenceConfig
	Catalog   CatalogConfig
	Auth      AuthConfig
	Reports   ReportsConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type InferenceConfig struct {
	// Mode selects the transport: "http" or "process".
	Mode       string
	URL        string
	Command    string
	Args       []string
	TimeoutSec int
	// ScoreScale is "auto", "percent" or "probability".
	ScoreScale  string
	CacheTTLSec int

	BreakerFailureThreshold uint32
	BreakerTimeoutSec       int
}

type CatalogConfig struct {
	Path string
}

type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
	BcryptCost      int
}

type ReportsConfig struct {
	CascadeOnAccountDelete bool
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type SecurityConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mediassist")

	v.SetEnvPrefix("MEDIASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Env overrides for list values arrive as comma separated strings.
	if len(config.Security.AllowedOrigins) == 1 && strings.Contains(config.Security.AllowedOrigins[0], ",") {
		config.Security.AllowedOrigins = strings.Split(config.Security.AllowedOrigins[0], ",")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5001)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 60)
	v.SetDefault("server.bodyLimit", 1048576)

	v.SetDefault("sqlite.path", "./data/mediassist.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("inference.mode", "http")
	v.SetDefault("inference.url", "http://localhost:5000/predict")
	v.SetDefault("inference.command", "python3")
	v.SetDefault("inference.args", []string{"predict.py"})
	v.SetDefault("inference.timeoutSec", 30)
	v.SetDefault("inference.scoreScale", "auto")
	v.SetDefault("inference.cacheTTLSec", 3600)
	v.SetDefault("inference.breakerFailureThreshold", 5)
	v.SetDefault("inference.breakerTimeoutSec", 30)

	v.SetDefault("catalog.path", "")

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTLMinutes", 720)
	v.SetDefault("auth.bcryptCost", 10)

	v.SetDefault("reports.cascadeOnAccountDelete", true)

	v.SetDefault("rateLimit.requestsPerSecond", 2)
	v.SetDefault("rateLimit.burst", 10)

	v.SetDefault("security.allowedOrigins", []string{"http://localhost:3000"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Inference.Mode {
	case "http":
		if c.Inference.URL == "" {
			return fmt.Errorf("inference.url is required when inference.mode is \"http\"")
		}
	case "process":
		if c.Inference.Command == "" {
			return fmt.Errorf("inference.command is required when inference.mode is \"process\"")
		}
	default:
		return fmt.Errorf("inference.mode must be \"http\" or \"process\", got %q", c.Inference.Mode)
	}

	if c.Inference.TimeoutSec <= 0 {
		return fmt.Errorf("inference.timeoutSec must be positive")
	}

	switch c.Inference.ScoreScale {
	case "auto", "percent", "probability":
	default:
		return fmt.Errorf("inference.scoreScale must be auto, percent or probability, got %q", c.Inference.ScoreScale)
	}

	if c.Auth.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("auth.jwtSecret is required outside development")
		}
		c.Auth.JWTSecret = "mediassist-development-secret"
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcryptCost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	if c.SQLite.Path == "" {
		return fmt.Errorf("sqlite.path is required")
	}

	return nil
}
