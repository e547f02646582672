package constants

const (
	// Environment overrides
	EnvDatabase = "HABITRUN_DB"
	EnvUser     = "HABITRUN_USER"
	EnvTimezone = "HABITRUN_TIMEZONE"
	EnvDebug    = "HABITRUN_DEBUG"
	EnvRedis    = "REDIS_ADDR"
	EnvDBConn   = "HABITRUN_DB_CONNECTION"

	// Test-only environment
	EnvTestPostgres = "HABITRUN_TEST_POSTGRES"

	// Default Settings Values
	DefaultTimezone = "Local" // Use system local timezone by default
	DefaultUser     = "local"
)
