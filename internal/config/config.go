package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Supported target types.
const (
	TypeMySQL    = "mysql"
	TypeMariaDB  = "mariadb"
	TypeOracle   = "oracle"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Upsert strategies.
const (
	StrategyExists     = "exists"
	StrategyOptimistic = "optimistic"
)

// EnvPrefix prefixes environment overrides: REPLICATOR_HOST, REPLICATOR_PASSWORD,
// REPLICATOR_DB_NAME and so on.
const EnvPrefix = "REPLICATOR"

type Config struct {
	Logger struct {
		Level    string `yaml:"level"`
		Target   string `yaml:"target"`
		Filename string `yaml:"filename"`
	} `yaml:"logger"`
	Targets     []DatabaseConfig  `yaml:"targets"`
	Replication ReplicationConfig `yaml:"replication"`
}

type DatabaseConfig struct {
	Name     string `yaml:"name" ignored:"true"` // unique name used to select the target
	Type     string `yaml:"type" ignored:"true"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname" split_words:"true"`
	SSLMode  string `yaml:"sslmode" split_words:"true"`
	Timeout  int    `yaml:"timeout"` // in seconds
	// Path is the database file of sqlite targets.
	Path string `yaml:"path"`
}

type ReplicationConfig struct {
	Target                 string        `yaml:"target"`
	MetaDataSchema         string        `yaml:"metadata_schema"`
	UpsertStrategy         string        `yaml:"upsert_strategy"`
	DisableDiscoveryCounts bool          `yaml:"disable_discovery_counts"`
	Workers                int           `yaml:"workers"`
	ShutdownTimeout        time.Duration `yaml:"shutdown_timeout"`
	PostProcedure          []Procedure   `yaml:"post_procedure_list"`
}

type Procedure struct {
	ProcedureName string        `yaml:"procedure_name"`
	Params        []interface{} `yaml:"procedure_params"`
}

func (d *DatabaseConfig) Validate() error {
	if d.Name == "" {
		return errors.New("target name cannot be empty")
	}
	switch d.Type {
	case TypeMySQL, TypeMariaDB, TypeOracle, TypePostgres:
		if d.Host == "" {
			return fmt.Errorf("target %s: host cannot be empty", d.Name)
		}
	case TypeSQLite:
		if d.Path == "" {
			return fmt.Errorf("target %s: path cannot be empty", d.Name)
		}
	default:
		return fmt.Errorf("target %s: type must be one of mysql, mariadb, oracle, postgres, sqlite", d.Name)
	}
	return nil
}

func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("at least one target must be configured")
	}
	seen := make(map[string]bool, len(c.Targets))
	for i := range c.Targets {
		if err := c.Targets[i].Validate(); err != nil {
			return fmt.Errorf("invalid target config: %w", err)
		}
		if seen[c.Targets[i].Name] {
			return fmt.Errorf("duplicate target name %q", c.Targets[i].Name)
		}
		seen[c.Targets[i].Name] = true
	}
	if c.Replication.Target != "" && !seen[c.Replication.Target] {
		return fmt.Errorf("replication target %q not found in targets", c.Replication.Target)
	}
	switch c.Replication.UpsertStrategy {
	case StrategyExists, StrategyOptimistic:
	default:
		return fmt.Errorf("upsert_strategy must be either '%s' or '%s'", StrategyExists, StrategyOptimistic)
	}
	if c.Replication.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Target == "" {
		c.Logger.Target = "stdout"
	}
	if c.Replication.UpsertStrategy == "" {
		c.Replication.UpsertStrategy = StrategyExists
	}
	if c.Replication.Workers == 0 {
		c.Replication.Workers = 4
	}
	if c.Replication.ShutdownTimeout == 0 {
		c.Replication.ShutdownTimeout = 30 * time.Second
	}
	for i := range c.Targets {
		if c.Targets[i].Timeout == 0 {
			c.Targets[i].Timeout = 5
		}
		if c.Targets[i].SSLMode == "" {
			c.Targets[i].SSLMode = "disable"
		}
	}
	if c.Replication.Target == "" && len(c.Targets) > 0 {
		c.Replication.Target = c.Targets[0].Name
	}
}

// GetConfig reads the YAML config, loads an optional .env next to the working
// directory and overlays REPLICATOR_* variables onto the replication target.
func GetConfig(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding YAML: %w", err)
	}
	cfg.setDefaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}
	if target, err := cfg.FindDatabaseConfig(cfg.Replication.Target); err == nil {
		if err := envconfig.Process(EnvPrefix, target); err != nil {
			return nil, fmt.Errorf("error applying environment overrides: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// FindDatabaseConfig returns the target with the given name.
func (c *Config) FindDatabaseConfig(name string) (*DatabaseConfig, error) {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], nil
		}
	}
	return nil, fmt.Errorf("target '%s' not found in config", name)
}
