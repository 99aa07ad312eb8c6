package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config represents the top-level YAML configuration.
type Config struct {
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
	Backup   Backup   `yaml:"backup"`
}

// Database selects the engine and how to reach it.
type Database struct {
	Driver     string     `yaml:"driver"`
	Path       string     `yaml:"path"`   // sqlite file
	DSN        string     `yaml:"dsn"`    // mysql DSN
	Schema     string     `yaml:"schema"` // postgres schema, default "public"
	Connection Connection `yaml:"connection"`
}

// Connection holds PostgreSQL connection parameters.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Log configures logrus output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Backup configures the pre-swap table dump.
type Backup struct {
	Dir string `yaml:"dir"`
}

// DSN builds a PostgreSQL connection string.
func (c *Connection) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
	)
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, applies environment fallbacks and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnv fills in empty connection fields from environment variables.
// YAML values take precedence; env vars are used only as fallback.
func (c *Config) applyEnv() {
	db := &c.Database
	if db.Path == "" {
		db.Path = envOr("SCHEMASHIFT_SQLITE_PATH")
	}
	if db.DSN == "" {
		db.DSN = envOr("MYSQL_DSN")
	}

	conn := &db.Connection
	if conn.Host == "" {
		conn.Host = envOr("PGHOST", "POSTGRES_HOST")
	}
	if conn.Port == 0 {
		if s := envOr("PGPORT", "POSTGRES_PORT"); s != "" {
			if p, err := strconv.Atoi(s); err == nil {
				conn.Port = p
			}
		}
	}
	if conn.Database == "" {
		conn.Database = envOr("PGDATABASE", "POSTGRES_DB")
	}
	if conn.User == "" {
		conn.User = envOr("PGUSER", "POSTGRES_USER")
	}
	if conn.Password == "" {
		conn.Password = envOr("PGPASSWORD", "POSTGRES_PASSWORD")
	}
	if conn.SSLMode == "" {
		conn.SSLMode = envOr("PGSSLMODE")
	}
}

// envOr returns the first non-empty value from the given env var names.
func envOr(names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return ""
}

// validate checks the driver-specific fields and fills defaults.
func (c *Config) validate() error {
	db := &c.Database
	if db.Driver == "" {
		db.Driver = DriverSQLite
	}

	switch db.Driver {
	case DriverSQLite:
		if db.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	case DriverPostgres:
		conn := &db.Connection
		if conn.Host == "" {
			return fmt.Errorf("database.connection.host is required")
		}
		if conn.Port == 0 {
			conn.Port = 5432
		}
		if conn.Database == "" {
			return fmt.Errorf("database.connection.database is required")
		}
		if conn.User == "" {
			return fmt.Errorf("database.connection.user is required")
		}
		if conn.SSLMode == "" {
			conn.SSLMode = "disable"
		}
		if db.Schema == "" {
			db.Schema = "public"
		}
	case DriverMySQL:
		if db.DSN == "" {
			return fmt.Errorf("database.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q (supported: sqlite, postgres, mysql)", db.Driver)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	return nil
}
