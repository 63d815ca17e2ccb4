package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config 进程级配置，全部来自环境变量（.env 由 main 先行加载）
type Config struct {
	Port        string `env:"PORT,default=8080"`
	DatabaseURL string `env:"DATABASE_URL,default=host=localhost user=postgres password=postgres dbname=circle port=5432 sslmode=disable"`

	JWTSecret       string        `env:"JWT_SECRET,required"`
	RefreshSecret   string        `env:"REFRESH_SECRET,required"` // 刷新 cookie 的签名密钥
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL,default=15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL,default=720h"`
	CookieSecure    bool          `env:"COOKIE_SECURE,default=false"`

	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`

	RedisURL      string `env:"REDIS_URL"`
	ImgurClientID string `env:"IMGUR_CLIENT_ID"`
	MaxUploadMB   int64  `env:"MAX_UPLOAD_MB,default=5"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	AuthRatePerSec float64 `env:"AUTH_RATE_PER_SEC,default=1"`
	AuthRateBurst  int     `env:"AUTH_RATE_BURST,default=5"`

	CleanupSchedule       string        `env:"CLEANUP_SCHEDULE,default=0 3 * * *"`
	NotificationRetention time.Duration `env:"NOTIFICATION_RETENTION,default=2160h"`
}

// Load 解析环境变量并做基本校验
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 bytes")
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 5
	}
	return &cfg, nil
}

// AllowedOrigins 拆分 CORS 白名单，逗号或分号分隔
func (c *Config) AllowedOrigins() []string {
	var origins []string
	parts := strings.FieldsFunc(c.CORSAllowedOrigins, func(r rune) bool { return r == ',' || r == ';' })
	for _, o := range parts {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// MaxUploadBytes 上传体积上限（字节）
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}
