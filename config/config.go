package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config là toàn bộ cấu hình server, đọc từ biến môi trường (và .env nếu có).
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	// DB_URL được ưu tiên; nếu trống thì ghép từ DB_HOST/DB_PORT/...
	DatabaseURL string `env:"DB_URL"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBUser      string `env:"DB_USER" envDefault:"postgres"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME" envDefault:"matchday"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// RedisURL trống: realtime chỉ chạy trong 1 instance, notification giao bằng goroutine.
	RedisURL         string `env:"REDIS_URL"`
	RealtimeChannel  string `env:"REALTIME_CHANNEL" envDefault:"matchday:realtime"`
	QueueConcurrency int    `env:"QUEUE_CONCURRENCY" envDefault:"10"`
	QueueWeights     string `env:"QUEUE_WEIGHTS" envDefault:"notifications=3,default=1"`

	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load đọc .env (nếu có) rồi parse biến môi trường.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.QueueConcurrency < 1 {
		return fmt.Errorf("config: QUEUE_CONCURRENCY must be positive, got %d", c.QueueConcurrency)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	return nil
}

// DSN trả về connection string cho pgx.
func (c Config) DSN() string {
	if s := strings.TrimSpace(c.DatabaseURL); s != "" {
		return s
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBHost + ":" + c.DBPort,
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}
