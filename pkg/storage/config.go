package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// BackendType selects the persistence backend at boot.
type BackendType string

const (
	// BackendFile stores JSON records under a directory, guarded by
	// OS advisory file locks. Single-node only.
	BackendFile BackendType = "file"

	// BackendRedis uses Redis INCRBY, Lua scripts and SET NX PX.
	BackendRedis BackendType = "redis"

	// BackendMySQL uses MySQL with optimistic version updates and GET_LOCK.
	BackendMySQL BackendType = "mysql"

	// BackendPostgres uses PostgreSQL with optimistic version updates and
	// advisory locks.
	BackendPostgres BackendType = "postgres"

	// BackendSQLite uses embedded SQLite through the same SQL store.
	// Single-node only.
	BackendSQLite BackendType = "sqlite"

	// BackendBadger uses an embedded Badger key-value store. Single-node only.
	BackendBadger BackendType = "badger"
)

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir is the base directory holding configs/, sequences/, tokens/,
	// leases/ and locks/.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"`

	// KeyPrefix namespaces all Redis keys. Default: "idbuilder".
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// SQLConfig configures the MySQL, PostgreSQL and SQLite backends.
type SQLConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"`
	SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

	// Path is the database file for the sqlite backend.
	Path string `mapstructure:"path" yaml:"path"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`

	// InMemory runs badger without disk persistence. Test use only.
	InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
}

// Config selects and configures the storage backend.
type Config struct {
	Type   BackendType  `mapstructure:"type" yaml:"type"`
	File   FileConfig   `mapstructure:"file" yaml:"file"`
	Redis  RedisConfig  `mapstructure:"redis" yaml:"redis"`
	SQL    SQLConfig    `mapstructure:"sql" yaml:"sql"`
	Badger BadgerConfig `mapstructure:"badger" yaml:"badger"`
}

// ApplyDefaults fills missing values. The default backend is file,
// rooted under the user config directory.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = BackendFile
	}

	if c.Type == BackendFile && c.File.Dir == "" {
		configDir := os.Getenv("XDG_DATA_HOME")
		if configDir == "" {
			homeDir, _ := os.UserHomeDir()
			configDir = filepath.Join(homeDir, ".local", "share")
		}
		c.File.Dir = filepath.Join(configDir, "idbuilder")
	}

	if c.Type == BackendRedis {
		if c.Redis.Addr == "" {
			c.Redis.Addr = "localhost:6379"
		}
		if c.Redis.KeyPrefix == "" {
			c.Redis.KeyPrefix = "idbuilder"
		}
	}

	if c.Type == BackendMySQL || c.Type == BackendPostgres {
		if c.SQL.Port == 0 {
			if c.Type == BackendMySQL {
				c.SQL.Port = 3306
			} else {
				c.SQL.Port = 5432
			}
		}
		if c.SQL.SSLMode == "" {
			c.SQL.SSLMode = "disable"
		}
		if c.SQL.MaxOpenConns == 0 {
			c.SQL.MaxOpenConns = 25
		}
		if c.SQL.MaxIdleConns == 0 {
			c.SQL.MaxIdleConns = 5
		}
	}
}

// Validate checks that the selected backend is fully configured.
func (c *Config) Validate() error {
	switch c.Type {
	case BackendFile:
		if c.File.Dir == "" {
			return fmt.Errorf("file backend requires dir")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis backend requires addr")
		}
	case BackendMySQL, BackendPostgres:
		if c.SQL.Host == "" {
			return fmt.Errorf("%s backend requires host", c.Type)
		}
		if c.SQL.Database == "" {
			return fmt.Errorf("%s backend requires database", c.Type)
		}
		if c.SQL.User == "" {
			return fmt.Errorf("%s backend requires user", c.Type)
		}
	case BackendSQLite:
		if c.SQL.Path == "" {
			return fmt.Errorf("sqlite backend requires path")
		}
	case BackendBadger:
		if c.Badger.Dir == "" && !c.Badger.InMemory {
			return fmt.Errorf("badger backend requires dir")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
	return nil
}
