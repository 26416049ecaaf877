package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would make the
// retirement engine misbehave at runtime. It returns the first problem
// found with enough context to fix it.
func (c *Config) Validate() error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Retirement.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", d.Port)
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	switch d.TLS {
	case "", "disable", "preferred", "required":
	default:
		return fmt.Errorf("database.tls must be one of disable, preferred, required; got %q", d.TLS)
	}
	return nil
}

func (r *RetirementConfig) validate() error {
	if r.ChunkSize <= 0 {
		return fmt.Errorf("retirement.chunk_size must be positive, got %d", r.ChunkSize)
	}
	if len(r.UsersTables) == 0 {
		return fmt.Errorf("retirement.users_tables must list at least one candidate")
	}
	if r.UsersPK == "" {
		return fmt.Errorf("retirement.users_pk is required")
	}
	if len(r.ArchiveTables) == 0 {
		return fmt.Errorf("retirement.archive_tables must list at least one candidate")
	}
	for i, aux := range r.AuxTables {
		if aux.Source == "" || aux.Archive == "" {
			return fmt.Errorf("retirement.aux_tables[%d] must set both source and archive", i)
		}
		if len(aux.KeyColumns) == 0 {
			return fmt.Errorf("retirement.aux_tables[%d] (%s) must list key_columns", i, aux.Source)
		}
		if aux.ArchiveKeyColumn == "" {
			return fmt.Errorf("retirement.aux_tables[%d] (%s) must set archive_key_column", i, aux.Source)
		}
	}
	return nil
}

func (l *LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", l.Level)
	}
	switch l.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", l.Format)
	}
	return nil
}
