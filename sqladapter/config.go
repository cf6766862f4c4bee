package sqladapter

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

var (
	ErrNoDatabase        = errors.New("sqladapter: specify database please")
	ErrUnsupportedDriver = errors.New("sqladapter: unsupported driver")
)

// Config holds the connection parameters.
type Config struct {
	Driver   string            `mapstructure:"driver"`   // mysql (default) or sqlite
	Host     string            `mapstructure:"host"`     // default: localhost
	Port     int               `mapstructure:"port"`     // default: 3306
	User     string            `mapstructure:"user"`     // default: root
	Password string            `mapstructure:"password"` // default: empty
	Database string            `mapstructure:"database"` // required; a file path for sqlite
	Params   map[string]string `mapstructure:"params"`   // extra DSN parameters
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverMySQL
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.User == "" {
		c.User = "root"
	}
}

// Validate reports a configuration error.
func (c Config) Validate() error {
	if c.Database == "" {
		return ErrNoDatabase
	}
	switch c.Driver {
	case DriverMySQL, DriverSQLite:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnsupportedDriver, c.Driver)
}

// DSN renders the data source name for the configured driver.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Database
	}
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// LoadConfig reads connection parameters from an optional YAML/JSON/TOML
// file, overridden by FABRICATOR_* environment variables
// (FABRICATOR_DATABASE, FABRICATOR_HOST, ...).
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FABRICATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver", DriverMySQL)
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 3306)
	v.SetDefault("user", "root")
	v.SetDefault("password", "")
	v.SetDefault("database", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("sqladapter: failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("sqladapter: failed to decode config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
