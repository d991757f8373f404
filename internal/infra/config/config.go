package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	Argon2    Argon2Settings    `mapstructure:"argon2"`
	Codes     CodeSettings      `mapstructure:"codes"`
	Reaper    ReaperSettings    `mapstructure:"reaper"`
	Password  PasswordSettings  `mapstructure:"password"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host                string        `mapstructure:"host"`
	Port                int           `mapstructure:"port"`
	DB                  int           `mapstructure:"db"`
	Password            string        `mapstructure:"password"`
	TLSEnabled          bool          `mapstructure:"tls_enabled"`
	SecurityStampPrefix string        `mapstructure:"security_stamp_prefix"`
	SecurityStampTTL    time.Duration `mapstructure:"security_stamp_ttl"`
}

// KafkaSettings configures the Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
	Enabled     bool     `mapstructure:"enabled"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

type JWTSettings struct {
	KeyDirectory    string        `mapstructure:"key_directory"`
	SigningKeyID    string        `mapstructure:"signing_key_id"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type TelemetrySettings struct {
	MetricsPort int    `mapstructure:"metrics_port"`
	ServiceName string `mapstructure:"service_name"`
}

// CodeSettings configures verification code issuance
type CodeSettings struct {
	Length int           `mapstructure:"length"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// ReaperSettings configures the background expiry sweeps
type ReaperSettings struct {
	TokenInterval time.Duration `mapstructure:"token_interval"`
	CodeInterval  time.Duration `mapstructure:"code_interval"`
}

// PasswordSettings configures the password acceptance policy
type PasswordSettings struct {
	MinLength int `mapstructure:"min_length"`
	MinScore  int `mapstructure:"min_score"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("IDP")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.security_stamp_prefix",
		"redis.security_stamp_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"kafka.enabled",
		"jwt.key_directory",
		"jwt.signing_key_id",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.refresh_token_ttl",
		"telemetry.metrics_port",
		"telemetry.service_name",
		"argon2.memory",
		"argon2.iterations",
		"argon2.parallelism",
		"argon2.salt_length",
		"argon2.key_length",
		"codes.length",
		"codes.ttl",
		"reaper.token_interval",
		"reaper.code_interval",
		"password.min_length",
		"password.min_score",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "identity-auth")
	v.SetDefault("app.env", "development")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "idp")
	v.SetDefault("postgres.password", "idp_password")
	v.SetDefault("postgres.database", "idp")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.security_stamp_prefix", "idp:security_stamp")
	v.SetDefault("redis.security_stamp_ttl", "5m")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "idp")
	v.SetDefault("kafka.async", true)
	v.SetDefault("kafka.enabled", true)

	v.SetDefault("jwt.key_directory", "./secrets")
	v.SetDefault("jwt.signing_key_id", "v1")
	v.SetDefault("jwt.issuer", "identity-auth")
	v.SetDefault("jwt.access_token_ttl", "15m")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("telemetry.metrics_port", 9090)
	v.SetDefault("telemetry.service_name", "identity-auth")

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("codes.length", 6)
	v.SetDefault("codes.ttl", "15m")

	v.SetDefault("reaper.token_interval", "24h")
	v.SetDefault("reaper.code_interval", "30m")

	v.SetDefault("password.min_length", 10)
	v.SetDefault("password.min_score", 2)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "IDP_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
