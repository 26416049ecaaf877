package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 500, cfg.Retirement.ChunkSize)
	assert.True(t, cfg.Retirement.Verify)
	assert.False(t, cfg.Retirement.StrictSchema)
	assert.Equal(t, []string{"users"}, cfg.Retirement.UsersTables)
	assert.Equal(t, "id", cfg.Retirement.UsersPK)
	assert.Equal(t, []string{"teacher", "teachers", "faculty"}, cfg.Retirement.RoleTables)
	assert.NotEmpty(t, cfg.Retirement.ArchiveTables)
	assert.NotEmpty(t, cfg.Retirement.AlternateIDColumns)
	assert.NotEmpty(t, cfg.Retirement.RoleJoinKeyColumns)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, ":8080", cfg.Server.Listen)
}

func TestLoad(t *testing.T) {
	content := `
database:
  host: db.school.local
  port: 3306
  user: saes
  password: ${SAES_DB_PASSWORD}
  database: school

retirement:
  chunk_size: 250
  strict_schema: true
  role_tables:
    - faculty

logging:
  level: debug
`
	dir := t.TempDir()
	path := filepath.Join(dir, "saesadmin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	os.Setenv("SAES_DB_PASSWORD", "s3cret")
	defer os.Unsetenv("SAES_DB_PASSWORD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.school.local", cfg.Database.Host)
	assert.Equal(t, "s3cret", cfg.Database.Password, "env vars substituted into secrets")
	assert.Equal(t, 250, cfg.Retirement.ChunkSize)
	assert.True(t, cfg.Retirement.StrictSchema)
	assert.Equal(t, []string{"faculty"}, cfg.Retirement.RoleTables, "file overrides candidate lists")
	assert.Equal(t, "id", cfg.Retirement.UsersPK, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/saesadmin.yaml")
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()

	cfg.ApplyOverrides("debug", "text", 100, true, true)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 100, cfg.Retirement.ChunkSize)
	assert.True(t, cfg.Retirement.StrictSchema)
	assert.False(t, cfg.Retirement.Verify)

	// Zero values leave settings untouched.
	cfg.ApplyOverrides("", "", 0, false, false)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Retirement.ChunkSize)
	assert.False(t, cfg.Retirement.Verify)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Database.Host = "localhost"
		cfg.Database.User = "saes"
		cfg.Database.Database = "school"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "Valid", mutate: func(c *Config) {}},
		{name: "Missing host", mutate: func(c *Config) { c.Database.Host = "" }, errMsg: "database.host"},
		{name: "Bad port", mutate: func(c *Config) { c.Database.Port = 70000 }, errMsg: "database.port"},
		{name: "Bad TLS", mutate: func(c *Config) { c.Database.TLS = "maybe" }, errMsg: "database.tls"},
		{name: "Zero chunk size", mutate: func(c *Config) { c.Retirement.ChunkSize = 0 }, errMsg: "chunk_size"},
		{name: "No users candidates", mutate: func(c *Config) { c.Retirement.UsersTables = nil }, errMsg: "users_tables"},
		{name: "No archive candidates", mutate: func(c *Config) { c.Retirement.ArchiveTables = nil }, errMsg: "archive_tables"},
		{name: "Aux missing archive", mutate: func(c *Config) {
			c.Retirement.AuxTables[0].Archive = ""
		}, errMsg: "aux_tables"},
		{name: "Bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, errMsg: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
