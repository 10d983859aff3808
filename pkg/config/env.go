package config

const (
	EnvPrefix = "FIELDOPS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "FIELDOPS_APP_ENV"
	EnvPort     = "FIELDOPS_APP_PORT"
	EnvLogLevel = "FIELDOPS_LOG_LEVEL"

	EnvDBDSN  = "FIELDOPS_DB_DSN"
	EnvDBHost = "FIELDOPS_DB_HOST"
	EnvDBUser = "FIELDOPS_DB_USER"
	EnvDBName = "FIELDOPS_DB_NAME"

	EnvRedisURL  = "FIELDOPS_REDIS_URL"
	EnvUseSQLite = "FIELDOPS_USE_SQLITE"

	EnvDepotAddress = "FIELDOPS_DEPOT_ADDRESS"
	EnvDepotLat     = "FIELDOPS_DEPOT_LAT"
	EnvDepotLng     = "FIELDOPS_DEPOT_LNG"

	EnvORSAPIKey        = "FIELDOPS_ORS_API_KEY"
	EnvRoutingTimeout   = "FIELDOPS_ROUTING_TIMEOUT"
	EnvGeocodingTimeout = "FIELDOPS_GEOCODING_TIMEOUT"
	EnvRabbitMQURL      = "FIELDOPS_RABBITMQ_URL"

	EnvAssignmentLockTTL = "FIELDOPS_ASSIGNMENT_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
