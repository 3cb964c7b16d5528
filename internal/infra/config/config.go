package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "UNIMART"

// ErrSessionSecretRequired is returned when no session signing secret is configured.
var ErrSessionSecretRequired = errors.New("config: session.secret is required")

type AppConfig struct {
	App          AppSettings          `mapstructure:"app"`
	Log          LogSettings          `mapstructure:"log"`
	Storage      StorageSettings      `mapstructure:"storage"`
	Postgres     PostgresSettings     `mapstructure:"postgres"`
	Redis        RedisSettings        `mapstructure:"redis"`
	Kafka        KafkaSettings        `mapstructure:"kafka"`
	Session      SessionSettings      `mapstructure:"session"`
	OTP          OTPSettings          `mapstructure:"otp"`
	Password     PasswordSettings     `mapstructure:"password"`
	Argon2       Argon2Settings       `mapstructure:"argon2"`
	Notification NotificationSettings `mapstructure:"notification"`
	Telemetry    TelemetrySettings    `mapstructure:"telemetry"`
	RateLimit    RateLimitSettings    `mapstructure:"rate_limit"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigins feeds the CORS middleware; "*" allows any origin without credentials.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether the service runs with production defaults.
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// LogSettings configures the zap logger sinks.
type LogSettings struct {
	Level string `mapstructure:"level"`
	// File enables a daily-rotated log file in addition to stdout.
	File         string        `mapstructure:"file"`
	MaxAge       time.Duration `mapstructure:"max_age"`
	RotationTime time.Duration `mapstructure:"rotation_time"`
}

// StorageSettings selects the credential store backend ("postgres" or "memory").
type StorageSettings struct {
	Driver string `mapstructure:"driver"`
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
	ConnectRetries    uint64        `mapstructure:"connect_retries"`
}

// DSN renders the settings as a postgres:// connection URL.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User,
		p.Password,
		p.Host,
		p.Port,
		p.Database,
		p.SSLMode,
	)
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	DB              int    `mapstructure:"db"`
	Password        string `mapstructure:"password"`
	TLSEnabled      bool   `mapstructure:"tls_enabled"`
	RateLimitPrefix string `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the Kafka producer used for OTP hand-off and identity events.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	OTPTopic    string   `mapstructure:"otp_topic"`
}

// SessionSettings configures signed session tokens.
type SessionSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// OTPSettings configures one-time password validity windows.
type OTPSettings struct {
	RegisterTTL       time.Duration `mapstructure:"register_ttl"`
	ForgotPasswordTTL time.Duration `mapstructure:"forgot_password_ttl"`
	ResendTTL         time.Duration `mapstructure:"resend_ttl"`
}

// PasswordSettings configures the password policy.
type PasswordSettings struct {
	MinLength           int `mapstructure:"min_length"`
	MinCharacterClasses int `mapstructure:"min_character_classes"`
	// MinStrength is the minimum zxcvbn score (0-4); 0 disables the check.
	MinStrength int `mapstructure:"min_strength"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// NotificationSettings selects how OTPs leave the service ("kafka" or "log").
type NotificationSettings struct {
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint
type RateLimitSettings struct {
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts    int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts int           `mapstructure:"register_max_attempts"`
	OTPMaxAttempts      int           `mapstructure:"otp_max_attempts"`

	// OTPVerifyMaxAttempts bounds code guesses on verify-otp and reset-password, per IP and per email.
	OTPVerifyMaxAttempts int `mapstructure:"otp_verify_max_attempts"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.host",
	"app.port",
	"app.allowed_origins",
	"log.level",
	"log.file",
	"log.max_age",
	"log.rotation_time",
	"storage.driver",
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
	"postgres.connect_retries",
	"redis.enabled",
	"redis.host",
	"redis.port",
	"redis.db",
	"redis.password",
	"redis.tls_enabled",
	"redis.rate_limit_prefix",
	"kafka.brokers",
	"kafka.topic_prefix",
	"kafka.otp_topic",
	"session.secret",
	"session.issuer",
	"session.ttl",
	"otp.register_ttl",
	"otp.forgot_password_ttl",
	"otp.resend_ttl",
	"password.min_length",
	"password.min_character_classes",
	"password.min_strength",
	"argon2.memory",
	"argon2.iterations",
	"argon2.parallelism",
	"argon2.salt_length",
	"argon2.key_length",
	"notification.driver",
	"notification.timeout",
	"telemetry.tracing_enabled",
	"telemetry.otlp_endpoint",
	"telemetry.service_name",
	"telemetry.sampling_rate",
	"rate_limit.window_duration",
	"rate_limit.login_max_attempts",
	"rate_limit.register_max_attempts",
	"rate_limit.otp_max_attempts",
	"rate_limit.otp_verify_max_attempts",
}

// Load reads configuration from defaults, an optional config file and the environment, then validates it.
func Load(configFile string) (*AppConfig, error) {
	cfg, err := Read(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read resolves configuration without validating it.
func Read(configFile string) (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	if err := bindEnvs(v, envKeys); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings the service cannot start without.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Session.Secret) == "" {
		return ErrSessionSecretRequired
	}
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unsupported storage.driver %q", c.Storage.Driver)
	}
	switch c.Notification.Driver {
	case "kafka", "log":
	default:
		return fmt.Errorf("config: unsupported notification.driver %q", c.Notification.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "unimart-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_age", "168h")
	v.SetDefault("log.rotation_time", "24h")

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "unimart")
	v.SetDefault("postgres.password", "unimart_password")
	v.SetDefault("postgres.database", "unimart")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.connect_retries", 5)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "unimart:ratelimit")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "identity")
	v.SetDefault("kafka.otp_topic", "notification.otp.requested")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "unimart-identity")
	v.SetDefault("session.ttl", "168h")

	v.SetDefault("otp.register_ttl", "10m")
	v.SetDefault("otp.forgot_password_ttl", "10m")
	v.SetDefault("otp.resend_ttl", "5m")

	v.SetDefault("password.min_length", 8)
	v.SetDefault("password.min_character_classes", 2)
	v.SetDefault("password.min_strength", 2)

	v.SetDefault("argon2.memory", 65536) // 64 MB
	v.SetDefault("argon2.iterations", 3)
	v.SetDefault("argon2.parallelism", 4)
	v.SetDefault("argon2.salt_length", 16)
	v.SetDefault("argon2.key_length", 32)

	v.SetDefault("notification.driver", "kafka")
	v.SetDefault("notification.timeout", "5s")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "unimart-identity")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 5)
	v.SetDefault("rate_limit.register_max_attempts", 3)
	v.SetDefault("rate_limit.otp_max_attempts", 3)
	v.SetDefault("rate_limit.otp_verify_max_attempts", 5)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
