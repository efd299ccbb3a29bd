package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 进程级配置，全部来自环境变量
type Config struct {
	ServiceName string
	HTTPAddr    string

	DBDriver string // mysql | postgres | sqlite
	DBDSN    string

	RedisAddr     string // 为空时不启用 redis
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	LogLevel  string
	LogFormat string

	// TrustBodyIdentity 兼容旧客户端：没有 token 时信任请求体里的 authorId/editorId 等字段
	TrustBodyIdentity bool
	// OpenRoleRegistration 注册时允许客户端指定角色
	OpenRoleRegistration bool

	OutboxInterval    time.Duration
	ReconcileInterval time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		ServiceName: envString("SERVICE_NAME", "fanpage-server"),
		HTTPAddr:    envString("HTTP_ADDR", ":5000"),

		DBDriver: strings.ToLower(envString("DB_DRIVER", "mysql")),
		DBDSN:    os.Getenv("DB_DSN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		KafkaBrokers: envList("KAFKA_BROKERS"),
		KafkaTopic:   envString("KAFKA_TOPIC", "fanpage.content"),

		JWTAccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:        envDuration("JWT_ACCESS_TTL", 30*time.Minute),
		RefreshTTL:       envDuration("JWT_REFRESH_TTL", 24*time.Hour),

		LogLevel:  envString("LOG_LEVEL", "info"),
		LogFormat: envString("LOG_FORMAT", "text"),

		TrustBodyIdentity:    envBool("AUTH_TRUST_BODY_IDENTITY", false),
		OpenRoleRegistration: envBool("AUTH_OPEN_ROLE_REGISTRATION", true),

		OutboxInterval:    envDuration("OUTBOX_INTERVAL", time.Second),
		ReconcileInterval: envDuration("RECONCILE_INTERVAL", 5*time.Minute),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return errors.New("DB_DRIVER must be one of mysql, postgres, sqlite")
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if c.OutboxInterval <= 0 || c.ReconcileInterval <= 0 {
		return errors.New("worker intervals must be positive")
	}
	return nil
}

func envString(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(name)))
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envList(name string) []string {
	var out []string
	for _, value := range strings.Split(os.Getenv(name), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
