// Package config provides configuration structures and loading for the SAES
// administration backend.
package config

// Config represents the complete application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database" mapstructure:"database"`
	Retirement RetirementConfig `yaml:"retirement" mapstructure:"retirement"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the MySQL connection configuration.
type DatabaseConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// RetirementConfig controls the account retirement engine. The candidate
// lists exist because concrete table and column names vary per deployment;
// resolution tries each name in order and uses the first that exists.
type RetirementConfig struct {
	// ChunkSize is the number of ids bound into one IN clause.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size"`
	// StrictSchema promotes a missing expected table (role table, audit
	// table, auxiliary archive table) from a logged skip to a batch-aborting
	// precondition failure.
	StrictSchema bool `yaml:"strict_schema" mapstructure:"strict_schema"`
	// Verify re-counts dependent rows inside the transaction before commit.
	Verify bool `yaml:"verify" mapstructure:"verify"`

	UsersTables   []string `yaml:"users_tables" mapstructure:"users_tables"`
	UsersPK       string   `yaml:"users_pk" mapstructure:"users_pk"`
	RoleTables    []string `yaml:"role_tables" mapstructure:"role_tables"`
	ArchiveTables []string `yaml:"archive_tables" mapstructure:"archive_tables"`

	// AlternateIDColumns are tried in order against the role row to find the
	// secondary identifier (e.g. a formatted teacher code) that some
	// relationship tables are keyed by.
	AlternateIDColumns []string `yaml:"alternate_id_columns" mapstructure:"alternate_id_columns"`

	// AuditTables key directly on the primary account id and are deleted
	// outside the generic foreign-key pass.
	AuditTables []string `yaml:"audit_tables" mapstructure:"audit_tables"`

	// RoleJoinTables are relationship tables keyed by the alternate
	// identifier rather than the account id. RoleJoinKeyColumns are the
	// column names tried against each of them, in order.
	RoleJoinTables     []string `yaml:"role_join_tables" mapstructure:"role_join_tables"`
	RoleJoinKeyColumns []string `yaml:"role_join_key_columns" mapstructure:"role_join_key_columns"`

	// AuxTables are live/archived table pairs whose rows are preserved under
	// the archive id before the live rows are cascade-deleted.
	AuxTables []AuxTableConfig `yaml:"aux_tables" mapstructure:"aux_tables"`
}

// AuxTableConfig pairs a live relationship table with its archived
// counterpart.
type AuxTableConfig struct {
	Source           string   `yaml:"source" mapstructure:"source"`
	Archive          string   `yaml:"archive" mapstructure:"archive"`
	KeyColumns       []string `yaml:"key_columns" mapstructure:"key_columns"`
	ArchiveKeyColumn string   `yaml:"archive_key_column" mapstructure:"archive_key_column"`
}

// ServerConfig represents the HTTP server settings.
type ServerConfig struct {
	Listen          string `yaml:"listen" mapstructure:"listen"`
	ReadTimeoutSec  int    `yaml:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSec int    `yaml:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with the defaults used by school
// deployments. Candidate lists carry every table spelling observed across
// installations.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     10,
			MaxIdleConnections: 5,
		},
		Retirement: RetirementConfig{
			ChunkSize:          500,
			StrictSchema:       false,
			Verify:             true,
			UsersTables:        []string{"users"},
			UsersPK:            "id",
			RoleTables:         []string{"teacher", "teachers", "faculty"},
			ArchiveTables:      []string{"archived_users", "users_archive", "archive_users"},
			AlternateIDColumns: []string{"teacher_code", "employee_id", "faculty_id", "staff_no"},
			AuditTables:        []string{"activity_logs", "login_sessions"},
			RoleJoinTables:     []string{"teacher_grades", "teacher_sections"},
			RoleJoinKeyColumns: []string{"teacher_id", "teacher_code", "employee_id"},
			AuxTables: []AuxTableConfig{
				{
					Source:           "teacher_grades",
					Archive:          "archived_teacher_grades",
					KeyColumns:       []string{"teacher_id", "teacher_code"},
					ArchiveKeyColumn: "archive_id",
				},
			},
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat string, chunkSize int, strictSchema, skipVerify bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if chunkSize > 0 {
		c.Retirement.ChunkSize = chunkSize
	}
	if strictSchema {
		c.Retirement.StrictSchema = true
	}
	if skipVerify {
		c.Retirement.Verify = false
	}
}
