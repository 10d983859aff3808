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
	Depot        DepotConfig
	Routing      RoutingConfig
	Geocoding    GeocodingConfig
	Assignments  AssignmentsConfig
	Cron         CronConfig
	Events       EventsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Depot.validate(); err != nil {
		return nil, err
	}
	// finalize geocodes and routes while holding the assignment lock
	if budget := cfg.Geocoding.Timeout + cfg.Routing.Timeout; cfg.Assignments.LockTTL <= budget {
		return nil, fmt.Errorf("%s (%s) must exceed geocoding plus routing timeouts (%s)",
			EnvAssignmentLockTTL, cfg.Assignments.LockTTL, budget)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIELDOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"FIELDOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FIELDOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIELDOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"FIELDOPS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FIELDOPS_DB_DSN"`
	Driver string `envconfig:"FIELDOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FIELDOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"FIELDOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FIELDOPS_DB_USER"`
	LegacyPassword string `envconfig:"FIELDOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"FIELDOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"FIELDOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FIELDOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FIELDOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FIELDOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FIELDOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"FIELDOPS_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FIELDOPS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FIELDOPS_REDIS_ADDR"`
	Password     string        `envconfig:"FIELDOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"FIELDOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FIELDOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FIELDOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FIELDOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FIELDOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FIELDOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"FIELDOPS_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"FIELDOPS_SQLITE_PATH" default:"fieldops.db"`
	AutoMigrate bool   `envconfig:"FIELDOPS_AUTO_MIGRATE" default:"false"`
	// LocalLocks swaps the Redis locks for in-process ones. Only safe with a single replica.
	LocalLocks bool `envconfig:"FIELDOPS_LOCAL_LOCKS" default:"false"`
}

// DepotConfig is the fixed base every multi-stop route starts and ends at.
type DepotConfig struct {
	Name    string   `envconfig:"FIELDOPS_DEPOT_NAME" default:"depot"`
	Address string   `envconfig:"FIELDOPS_DEPOT_ADDRESS"`
	Lat     *float64 `envconfig:"FIELDOPS_DEPOT_LAT"`
	Lng     *float64 `envconfig:"FIELDOPS_DEPOT_LNG"`
}

// HasCoordinates reports whether the depot position is configured directly.
func (d DepotConfig) HasCoordinates() bool {
	return d.Lat != nil && d.Lng != nil
}

func (d DepotConfig) validate() error {
	if (d.Lat == nil) != (d.Lng == nil) {
		return fmt.Errorf("%s and %s must be set together", EnvDepotLat, EnvDepotLng)
	}
	if !d.HasCoordinates() && strings.TrimSpace(d.Address) == "" {
		return fmt.Errorf("either %s or %s/%s are required", EnvDepotAddress, EnvDepotLat, EnvDepotLng)
	}
	return nil
}

type RoutingConfig struct {
	ORSAPIKey         string        `envconfig:"FIELDOPS_ORS_API_KEY"`
	ORSBaseURL        string        `envconfig:"FIELDOPS_ORS_BASE_URL" default:"https://api.openrouteservice.org"`
	Profile           string        `envconfig:"FIELDOPS_ROUTING_PROFILE" default:"driving-car"`
	Timeout           time.Duration `envconfig:"FIELDOPS_ROUTING_TIMEOUT" default:"5s"`
	AssumedSpeedKmh   float64       `envconfig:"FIELDOPS_ROUTING_ASSUMED_SPEED_KMH" default:"60"`
	RequestsPerSecond float64       `envconfig:"FIELDOPS_ORS_REQUESTS_PER_SECOND" default:"5"`
}

// ProviderEnabled reports whether the external multi-stop provider can be called.
func (r RoutingConfig) ProviderEnabled() bool {
	return strings.TrimSpace(r.ORSAPIKey) != ""
}

type GeocodingConfig struct {
	GoogleMapsAPIKey string        `envconfig:"FIELDOPS_GOOGLE_MAPS_API_KEY"`
	Region           string        `envconfig:"FIELDOPS_GEOCODING_REGION"`
	Concurrency      int           `envconfig:"FIELDOPS_GEOCODING_CONCURRENCY" default:"4"`
	Timeout          time.Duration `envconfig:"FIELDOPS_GEOCODING_TIMEOUT" default:"10s"`
}

type AssignmentsConfig struct {
	LockTTL        time.Duration `envconfig:"FIELDOPS_ASSIGNMENT_LOCK_TTL" default:"30s"`
	ReturnRadiusKm float64       `envconfig:"FIELDOPS_GPS_RETURN_RADIUS_KM" default:"6"`
	TotalsLockTTL  time.Duration `envconfig:"FIELDOPS_TOTALS_LOCK_TTL" default:"15s"`
}

type CronConfig struct {
	Interval      time.Duration `envconfig:"FIELDOPS_CRON_INTERVAL" default:"24h"`
	LockTTL       time.Duration `envconfig:"FIELDOPS_CRON_LOCK_TTL" default:"30m"`
	JobTimeout    time.Duration `envconfig:"FIELDOPS_CRON_JOB_TIMEOUT" default:"10m"`
	TotalsEnabled bool          `envconfig:"FIELDOPS_CRON_TOTALS_ENABLED" default:"true"`
}

type EventsConfig struct {
	RabbitMQURL string `envconfig:"FIELDOPS_RABBITMQ_URL"`
	Exchange    string `envconfig:"FIELDOPS_EVENTS_EXCHANGE" default:"fieldops.assignments"`
}

// Enabled reports whether lifecycle events should be published.
func (e EventsConfig) Enabled() bool {
	return strings.TrimSpace(e.RabbitMQURL) != ""
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" || useSQLite {
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
