package config

import (
	"fmt"
	"strings"
)

const (
	IDTypeUUID = "uuid"
	IDTypeText = "text"
)

var validDrivers = map[string]bool{
	DriverPostgres: true,
	DriverSQLite:   true,
}

var validIDTypes = map[string]bool{
	IDTypeUUID: true,
	IDTypeText: true,
}

// Validate checks the config for errors and sets defaults.
func Validate(cfg *Config) error {
	db := &cfg.Database
	if db.Driver == "" {
		db.Driver = DriverPostgres
	}
	if !validDrivers[db.Driver] {
		return fmt.Errorf("config: database: unknown driver %q (must be postgres or sqlite)", db.Driver)
	}

	switch db.Driver {
	case DriverPostgres:
		if db.Host == "" {
			db.Host = "localhost"
		}
		if db.Port == 0 {
			db.Port = 5432
		}
		if db.Name == "" {
			db.Name = "postgres"
		}
		if db.User == "" {
			db.User = "postgres"
		}
		if db.SSLMode == "" {
			db.SSLMode = "disable"
		}
		if db.Port < 1 || db.Port > 65535 {
			return fmt.Errorf("config: database: port %d out of range", db.Port)
		}
	case DriverSQLite:
		if db.Path == "" {
			db.Path = "stepfix.db"
		}
	}

	if db.IDType == "" {
		db.IDType = IDTypeUUID
	}
	if !validIDTypes[db.IDType] {
		return fmt.Errorf("config: database: unknown id-type %q (must be uuid or text)", db.IDType)
	}

	if cfg.CanonicalAuthor == "" {
		cfg.CanonicalAuthor = "AI Team"
	}
	if strings.TrimSpace(cfg.CanonicalAuthor) == "" {
		return fmt.Errorf("config: 'canonical-author' must be non-empty")
	}
	if cfg.ApprovedStatus == "" {
		cfg.ApprovedStatus = "approved"
	}
	if cfg.ModifiedBy == "" {
		cfg.ModifiedBy = "stepfix"
	}

	if cfg.Concurrency == 0 {
		cfg.Concurrency = 4
	}
	if cfg.Concurrency < 0 {
		return fmt.Errorf("config: concurrency must be > 0")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchSize < 0 {
		return fmt.Errorf("config: batch-size must be > 0")
	}
	return nil
}
