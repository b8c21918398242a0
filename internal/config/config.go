package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up in the working directory when
// no explicit path is given.
const DefaultFile = "stepfix.yaml"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	IDType   string `yaml:"id-type"`
	Path     string `yaml:"path"`
}

type Config struct {
	Database        Database `yaml:"database"`
	CanonicalAuthor string   `yaml:"canonical-author"`
	ApprovedStatus  string   `yaml:"approved-status"`
	ModifiedBy      string   `yaml:"modified-by"`
	Concurrency     int      `yaml:"concurrency"`
	BatchSize       int      `yaml:"batch-size"`
}

// Load reads an optional YAML config file, applies environment overrides and
// returns a validated Config. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve returns the config path to load: the explicit one if set, else
// DefaultFile inside dir when it exists, else "".
func Resolve(explicit, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	candidate := filepath.Join(dir, DefaultFile)
	if _, err := os.Stat(candidate); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return candidate, nil
}

// ApplyEnv overrides database settings from the environment. Variables that
// are unset leave the file value alone; DB_PASSWORD may be set to empty.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	db := &cfg.Database
	strVars := []struct {
		key string
		dst *string
	}{
		{"DB_DRIVER", &db.Driver},
		{"DB_HOST", &db.Host},
		{"DB_NAME", &db.Name},
		{"DB_USER", &db.User},
		{"DB_PASSWORD", &db.Password},
		{"DB_SSLMODE", &db.SSLMode},
		{"DB_PATH", &db.Path},
	}
	for _, v := range strVars {
		if val, ok := lookup(v.key); ok {
			if val == "" && v.key != "DB_PASSWORD" {
				continue
			}
			*v.dst = val
		}
	}
	if val, ok := lookup("DB_PORT"); ok && val != "" {
		port, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("config: DB_PORT %q is not a number", val)
		}
		db.Port = port
	}
	return nil
}

// DSN returns the postgres connection URL for the database settings.
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Name,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Redacted returns the DSN with the password masked, for logging.
func (d Database) Redacted() string {
	if d.Driver == DriverSQLite {
		return "sqlite:" + d.Path
	}
	if d.Password == "" {
		return d.DSN()
	}
	masked := d
	masked.Password = "xxxxx"
	return masked.DSN()
}
