package config

const (
	EnvPrefix = "STAGECALL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "STAGECALL_APP_ENV"
	EnvPort     = "STAGECALL_APP_PORT"
	EnvLogLevel = "STAGECALL_LOG_LEVEL"

	EnvDBDSN  = "STAGECALL_DB_DSN"
	EnvDBHost = "STAGECALL_DB_HOST"
	EnvDBUser = "STAGECALL_DB_USER"
	EnvDBName = "STAGECALL_DB_NAME"

	EnvRedisURL     = "STAGECALL_REDIS_URL"
	EnvGCPProjectID = "STAGECALL_GCP_PROJECT_ID"

	EnvPubSubNotificationTopic = "STAGECALL_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "STAGECALL_PUBSUB_NOTIFICATION_SUBSCRIPTION"

	EnvDisableTimers    = "STAGECALL_DISABLE_TIMERS"
	EnvReminderMaxDelay = "STAGECALL_REMINDER_MAX_TIMER_DELAY"
	EnvTopicNamespace   = "STAGECALL_TOPIC_NAMESPACE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
