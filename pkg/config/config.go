package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "SAFETRACK_DB_DSN"
	EnvDBHost = "SAFETRACK_DB_HOST"
	EnvDBUser = "SAFETRACK_DB_USER"
	EnvDBName = "SAFETRACK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Telegram     TelegramConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAFETRACK_APP_ENV" required:"true"`
	Port         string `envconfig:"SAFETRACK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SAFETRACK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAFETRACK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SAFETRACK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SAFETRACK_DB_DSN"`
	Driver string `envconfig:"SAFETRACK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SAFETRACK_DB_HOST"`
	LegacyPort     int    `envconfig:"SAFETRACK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SAFETRACK_DB_USER"`
	LegacyPassword string `envconfig:"SAFETRACK_DB_PASSWORD"`
	LegacyName     string `envconfig:"SAFETRACK_DB_NAME"`
	LegacySSLMode  string `envconfig:"SAFETRACK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAFETRACK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAFETRACK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAFETRACK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAFETRACK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAFETRACK_REDIS_URL"`
	Address      string        `envconfig:"SAFETRACK_REDIS_ADDR"`
	Password     string        `envconfig:"SAFETRACK_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAFETRACK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAFETRACK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAFETRACK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAFETRACK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAFETRACK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAFETRACK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SAFETRACK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SAFETRACK_JWT_ISSUER" default:"safetrack"`
	ExpirationMinutes int    `envconfig:"SAFETRACK_JWT_EXPIRATION_MINUTES" default:"720"`
}

// SessionTTL returns how long a revocable session outlives its access token.
func (j JWTConfig) SessionTTL() time.Duration {
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SAFETRACK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SAFETRACK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SAFETRACK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SAFETRACK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SAFETRACK_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SAFETRACK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SAFETRACK_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SAFETRACK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"SAFETRACK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SAFETRACK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FindingTopic        string `envconfig:"SAFETRACK_PUBSUB_FINDING_TOPIC" default:"st-finding-events"`
	FindingSubscription string `envconfig:"SAFETRACK_PUBSUB_FINDING_SUBSCRIPTION" default:"st-finding-events-notifier"`
}

type TelegramConfig struct {
	BotToken string        `envconfig:"SAFETRACK_TELEGRAM_BOT_TOKEN"`
	APIBase  string        `envconfig:"SAFETRACK_TELEGRAM_API_BASE" default:"https://api.telegram.org"`
	Timeout  time.Duration `envconfig:"SAFETRACK_TELEGRAM_TIMEOUT" default:"10s"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SAFETRACK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SAFETRACK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SAFETRACK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"SAFETRACK_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"SAFETRACK_CRON_LOCK_TTL" default:"25h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
