package db

type Config struct {
	// Dialect selects the database driver: postgres, mysql or sqlite.
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`

	// DSN is the driver-specific connection string.
	DSN string `conf:"dsn" yaml:"dsn" json:"dsn"`

	// Debug logs every statement before it runs.
	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
}
