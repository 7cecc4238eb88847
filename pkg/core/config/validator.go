package config

import (
	"fmt"
	"sort"
	"strings"

	"liquidcore/pkg/core/logging"
)

// supportedDrivers are the database/sql drivers linked into liquid-render.
var supportedDrivers = map[string]bool{
	"sqlite": true,
}

// ValidateStructure checks a configuration with defaults applied.
func ValidateStructure(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if err := validateValues(&cfg.Values); err != nil {
		return fmt.Errorf("values: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		return fmt.Errorf("metrics: port must be between 0 and 65535, got %d", cfg.Metrics.Port)
	}

	if err := validateSources(cfg.Sources); err != nil {
		return fmt.Errorf("sources: %w", err)
	}

	for name := range cfg.Templates {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("templates: name cannot be empty")
		}
	}

	return nil
}

func validateValues(v *ValuesConfig) error {
	if v.MaxItems < 1 {
		return fmt.Errorf("max_items must be positive, got %d", v.MaxItems)
	}
	if v.MaxPredicateItems < 1 {
		return fmt.Errorf("max_predicate_items must be positive, got %d", v.MaxPredicateItems)
	}
	if strings.ContainsAny(v.AliasPrefix(), ". \t") {
		return fmt.Errorf("member_alias_prefix cannot contain dots or whitespace, got %q", v.AliasPrefix())
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	if !logging.IsValidLevel(l.Level) {
		return fmt.Errorf("level must be one of ERROR, WARNING, INFO, DEBUG, got %q", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case logging.FormatText, logging.FormatJSON:
		return nil
	default:
		return fmt.Errorf("format must be text or json, got %q", l.Format)
	}
}

func validateSources(sources map[string]SourceConfig) error {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		source := sources[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("source name cannot be empty")
		}
		if !supportedDrivers[source.Driver] {
			return fmt.Errorf("%s: unsupported driver %q", name, source.Driver)
		}
		if source.DSN == "" {
			return fmt.Errorf("%s: dsn cannot be empty", name)
		}
		if source.Table == "" {
			return fmt.Errorf("%s: table cannot be empty", name)
		}
	}
	return nil
}
