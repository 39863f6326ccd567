package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Firebase     FirebaseConfig
	Worker       WorkerConfig
	Reminders    ReminderConfig
	Topics       TopicConfig
	Email        EmailConfig
	History      HistoryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reminders.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STAGECALL_APP_ENV" required:"true"`
	Port         string `envconfig:"STAGECALL_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STAGECALL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STAGECALL_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// TopicEnv returns the short environment label embedded in push topic names.
func (a AppConfig) TopicEnv() string {
	if a.IsProd() {
		return "prod"
	}
	env := strings.ToLower(strings.TrimSpace(a.Env))
	if env == "" || env == AppEnvDev {
		return "dev"
	}
	return env
}

type ServiceConfig struct {
	Kind string `envconfig:"STAGECALL_SERVICE_KIND" default:"notification-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"STAGECALL_DB_DSN"`
	Driver string `envconfig:"STAGECALL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"STAGECALL_DB_HOST"`
	LegacyPort     int    `envconfig:"STAGECALL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STAGECALL_DB_USER"`
	LegacyPassword string `envconfig:"STAGECALL_DB_PASSWORD"`
	LegacyName     string `envconfig:"STAGECALL_DB_NAME"`
	LegacySSLMode  string `envconfig:"STAGECALL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STAGECALL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STAGECALL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STAGECALL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STAGECALL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STAGECALL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STAGECALL_REDIS_ADDR"`
	Password     string        `envconfig:"STAGECALL_REDIS_PASSWORD"`
	DB           int           `envconfig:"STAGECALL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STAGECALL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STAGECALL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STAGECALL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STAGECALL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STAGECALL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STAGECALL_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	JobIdempotencyTTL time.Duration `envconfig:"STAGECALL_EVENTING_IDEMPOTENCY_TTL" default:"72h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STAGECALL_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"STAGECALL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STAGECALL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"STAGECALL_PUBSUB_NOTIFICATION_TOPIC" default:"stagecall-notification-jobs"`
	NotificationSubscription string `envconfig:"STAGECALL_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	EmailTopic               string `envconfig:"STAGECALL_PUBSUB_EMAIL_TOPIC" default:"stagecall-email"`
	RealtimeTopic            string `envconfig:"STAGECALL_PUBSUB_REALTIME_TOPIC" default:"stagecall-realtime"`
}

type BigQueryConfig struct {
	Enabled         bool   `envconfig:"STAGECALL_BIGQUERY_ENABLED" default:"false"`
	Dataset         string `envconfig:"STAGECALL_BIGQUERY_DATASET" default:"stagecall"`
	DeliveriesTable string `envconfig:"STAGECALL_BIGQUERY_DELIVERIES_TABLE" default:"push_deliveries"`
}

type FirebaseConfig struct {
	ProjectID       string        `envconfig:"STAGECALL_FIREBASE_PROJECT_ID"`
	CredentialsJSON string        `envconfig:"STAGECALL_FIREBASE_CREDENTIALS_JSON"`
	SendTimeout     time.Duration `envconfig:"STAGECALL_FIREBASE_SEND_TIMEOUT" default:"10s"`
	RatePerSecond   float64       `envconfig:"STAGECALL_FIREBASE_RATE_PER_SECOND" default:"50"`
	Burst           int           `envconfig:"STAGECALL_FIREBASE_BURST" default:"10"`
}

type WorkerConfig struct {
	Concurrency    int `envconfig:"STAGECALL_WORKER_CONCURRENCY" default:"8"`
	UserFanOut     int `envconfig:"STAGECALL_WORKER_USER_FANOUT" default:"16"`
	ReadinessRetry int `envconfig:"STAGECALL_WORKER_READINESS_RETRIES" default:"3"`
}

type ReminderConfig struct {
	DisableTimers bool          `envconfig:"STAGECALL_DISABLE_TIMERS" default:"false"`
	MaxTimerDelay time.Duration `envconfig:"STAGECALL_REMINDER_MAX_TIMER_DELAY" default:"360h"`
	RearmCron     time.Duration `envconfig:"STAGECALL_REMINDER_REARM_INTERVAL" default:"6h"`
}

func (r ReminderConfig) validate() error {
	if r.MaxTimerDelay <= 0 {
		return fmt.Errorf("%s must be positive", EnvReminderMaxDelay)
	}
	return nil
}

type TopicConfig struct {
	Namespace string `envconfig:"STAGECALL_TOPIC_NAMESPACE" default:"post-created"`
}

type EmailConfig struct {
	UnsubscribeBaseURL string `envconfig:"STAGECALL_EMAIL_UNSUBSCRIBE_URL" default:"https://app.stagecall.io/settings/email"`
}

type HistoryConfig struct {
	RetentionDays int `envconfig:"STAGECALL_HISTORY_RETENTION_DAYS" default:"90"`
}

// Retention returns the delivery history retention window.
func (h HistoryConfig) Retention() time.Duration {
	if h.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(h.RetentionDays) * 24 * time.Hour
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
