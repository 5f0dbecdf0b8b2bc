package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Fields []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid configuration:\n%s", strings.Join(e.Fields, "\n"))
}

// ValidateConfig checks that every value the process cannot run without is
// present. Missing watsonx credentials are always fatal.
func ValidateConfig(cfg *Config) error {
	var problems []string

	required := map[string]string{
		"IBM_API_KEY":    cfg.IBMAPIKey,
		"IBM_PROJECT_ID": cfg.IBMProjectID,
		"IBM_REGION":     cfg.IBMRegion,
	}
	for _, key := range []string{"IBM_API_KEY", "IBM_PROJECT_ID", "IBM_REGION"} {
		if strings.TrimSpace(required[key]) == "" {
			problems = append(problems, fmt.Sprintf("required value %s is not set", key))
		}
	}

	switch cfg.DBDriver {
	case "postgres":
		if cfg.DBUser == "" {
			problems = append(problems, "DB_USER is required for the postgres driver")
		}
		if cfg.DBPassword == "" {
			problems = append(problems, "DB_PASSWORD is required for the postgres driver")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH is required for the sqlite driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}

	switch cfg.SessionStore {
	case "memory", "redis":
	default:
		problems = append(problems, fmt.Sprintf("unsupported SESSION_STORE %q", cfg.SessionStore))
	}

	switch cfg.Embedder {
	case "watsonx", "local":
	default:
		problems = append(problems, fmt.Sprintf("unsupported EMBEDDER %q", cfg.Embedder))
	}

	if cfg.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if cfg.GenerationTimeout <= 0 {
		problems = append(problems, "GENERATION_TIMEOUT must be positive")
	}

	// Session tokens signed with an empty key are trivially forgeable.
	if IsProduction() && cfg.SessionSecret == "" {
		problems = append(problems, "SESSION_SECRET is required in production")
	}

	if len(problems) > 0 {
		return ValidationError{Fields: problems}
	}
	return nil
}
