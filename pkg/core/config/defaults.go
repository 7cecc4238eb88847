package config

import (
	"liquidcore/pkg/path"
	"liquidcore/pkg/value"
)

const (
	// DefaultMaxItems is the default deferred collection cap.
	DefaultMaxItems = value.DefaultMaxItems

	// DefaultMemberAliasPrefix is the default member alias prefix.
	DefaultMemberAliasPrefix = path.DefaultAliasPrefix

	// DefaultMaxPredicateItems is the default cap of list targets.
	DefaultMaxPredicateItems = path.DefaultMaxPredicateItems

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "INFO"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultDriver is the default source driver.
	DefaultDriver = "sqlite"
)

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

func setDefaults(cfg *Config) {
	if cfg.Values.MaxItems == 0 {
		cfg.Values.MaxItems = DefaultMaxItems
	}
	if cfg.Values.MemberAliasPrefix == nil {
		prefix := DefaultMemberAliasPrefix
		cfg.Values.MemberAliasPrefix = &prefix
	}
	if cfg.Values.MaxPredicateItems == 0 {
		cfg.Values.MaxPredicateItems = DefaultMaxPredicateItems
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	// Metrics port 0 means disabled, so it has no default.

	for name, source := range cfg.Sources {
		if source.Driver == "" {
			source.Driver = DefaultDriver
		}
		if source.Table == "" {
			source.Table = name
		}
		cfg.Sources[name] = source
	}
}
