// Package config defines the liquid-render configuration file.
//
// Example:
//
//	values:
//	  max_items: 50
//	  member_alias_prefix: "_"
//	logging:
//	  level: DEBUG
//	metrics:
//	  port: 9090
//	sources:
//	  people:
//	    driver: sqlite
//	    dsn: file:people.db
//	    table: people
//	templates:
//	  person_row: "{{ p.name }} ({{ p.age }})"
package config

// Config is the root of the configuration file.
type Config struct {
	// Values configures how template data is lifted into values.
	Values ValuesConfig `yaml:"values"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	// Sources maps template variable names to SQL tables exposed as
	// deferred collections.
	Sources map[string]SourceConfig `yaml:"sources"`

	// Templates maps names to templates that rendered templates can
	// include with {% include "name" %}.
	Templates map[string]string `yaml:"templates"`
}

// ValuesConfig tunes deferred collections and member paths.
type ValuesConfig struct {
	// MaxItems caps the elements a deferred collection materializes.
	// Default: 50
	MaxItems int `yaml:"max_items"`

	// MemberAliasPrefix is tried before the raw name of each member path
	// segment.
	// Default: "_"
	MemberAliasPrefix *string `yaml:"member_alias_prefix"`

	// MaxPredicateItems caps list targets embedded in where and all.
	// Default: 50
	MaxPredicateItems int `yaml:"max_predicate_items"`
}

// AliasPrefix returns the member alias prefix, "" disabling aliases.
func (v ValuesConfig) AliasPrefix() string {
	if v.MemberAliasPrefix == nil {
		return DefaultMemberAliasPrefix
	}
	return *v.MemberAliasPrefix
}

type LoggingConfig struct {
	// Level is one of ERROR, WARNING, INFO, DEBUG.
	// Default: INFO
	Level string `yaml:"level"`

	// Format is text (logfmt) or json.
	// Default: text
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Port serves Prometheus metrics while rendering. 0 disables the
	// server.
	Port int `yaml:"port"`
}

// SourceConfig points a template variable at a database table.
type SourceConfig struct {
	// Driver is the database/sql driver name.
	// Default: sqlite
	Driver string `yaml:"driver"`

	// DSN is the data source name passed to the driver.
	DSN string `yaml:"dsn"`

	// Table is the table to query. Defaults to the source name.
	Table string `yaml:"table"`
}
