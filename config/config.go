// Package config has the configuration file for the app
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               string
	LogLevel          string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	// Terminology server
	SnomedBaseURL   string
	SnomedBranch    string
	SnomedRateLimit float64 // Outbound requests per second
	Workers         int     // Concurrent pipeline workers

	// National extension
	NationalNamespaceID string
	NationalLocale      string
	ExtensionModuleID   string
	NationalRefsetID    string // Language refset for national preferred terms

	// Attribute type concept ids
	HasDoseFormID         string
	HasActiveIngredientID string
	HasUnitID             string

	// Registry extract
	RegistryURL  string // Remote extract, optional when RegistryFile is set
	RegistryFile string // Local extract path, also the download cache
	ReportDir    string

	ReconcileAt string // Daily run times, semicolon separated HH:MM
	RunOnce     bool   // Run one reconciliation, write artifacts and exit
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               getEnvWithDefault("ENV", "dev"),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		SnomedBaseURL:   os.Getenv("SNOMED_BASE_URL"),
		SnomedBranch:    getEnvWithDefault("SNOMED_BRANCH", "MAIN"),
		SnomedRateLimit: getFloatEnvWithDefault("SNOMED_RATE_LIMIT", 5),
		Workers:         getIntEnvWithDefault("WORKERS", 4),

		NationalNamespaceID: os.Getenv("NATIONAL_NAMESPACE_ID"),
		NationalLocale:      os.Getenv("NATIONAL_LOCALE"),
		ExtensionModuleID:   os.Getenv("EXTENSION_MODULE_ID"),
		NationalRefsetID:    os.Getenv("NATIONAL_LANGUAGE_REFSET_ID"),

		HasDoseFormID:         os.Getenv("HAS_DOSE_FORM_ID"),
		HasActiveIngredientID: os.Getenv("HAS_ACTIVE_INGREDIENT_ID"),
		HasUnitID:             os.Getenv("HAS_UNIT_ID"),

		RegistryURL:  os.Getenv("REGISTRY_URL"),
		RegistryFile: getEnvWithDefault("REGISTRY_FILE", "files/registry.tsv"),
		ReportDir:    getEnvWithDefault("REPORT_DIR", "reports"),

		ReconcileAt: getEnvWithDefault("RECONCILE_AT", "06:00"),
		RunOnce:     getBoolEnvWithDefault("RUN_ONCE", false),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate PORT
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	// Validate ADDRESS
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	// Validate ENV
	if err := validateEnv(cfg.Env); err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	// Validate SNOMED_BASE_URL
	if err := validateBaseURL(cfg.SnomedBaseURL); err != nil {
		return fmt.Errorf("invalid SNOMED_BASE_URL: %w", err)
	}

	// Validate SNOMED_RATE_LIMIT
	if cfg.SnomedRateLimit <= 0 {
		return fmt.Errorf("invalid SNOMED_RATE_LIMIT: must be positive, got: %g", cfg.SnomedRateLimit)
	}

	// Validate WORKERS
	if cfg.Workers < 1 || cfg.Workers > 64 {
		return fmt.Errorf("invalid WORKERS: must be between 1 and 64, got: %d", cfg.Workers)
	}

	// Validate national extension identifiers
	if err := validateConceptID(cfg.NationalNamespaceID, "NATIONAL_NAMESPACE_ID"); err != nil {
		return err
	}
	if err := validateConceptID(cfg.ExtensionModuleID, "EXTENSION_MODULE_ID"); err != nil {
		return err
	}
	if cfg.NationalLocale == "" {
		return fmt.Errorf("invalid NATIONAL_LOCALE: cannot be empty")
	}

	// Validate attribute type identifiers. Misconfigured attribute ids would
	// silently produce zero matches, so they are required up front.
	if err := validateConceptID(cfg.HasDoseFormID, "HAS_DOSE_FORM_ID"); err != nil {
		return err
	}
	if err := validateConceptID(cfg.HasActiveIngredientID, "HAS_ACTIVE_INGREDIENT_ID"); err != nil {
		return err
	}
	if err := validateConceptID(cfg.HasUnitID, "HAS_UNIT_ID"); err != nil {
		return err
	}

	// Validate RECONCILE_AT
	if err := validateRunTimes(cfg.ReconcileAt); err != nil {
		return fmt.Errorf("invalid RECONCILE_AT: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		// This is acceptable for development
		return nil
	}

	// Check if it's a valid IP address
	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	ip := net.ParseIP(address)
	if ip != nil && !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateEnv validates the ENV environment variable
func validateEnv(env string) error {
	if env == "" {
		return fmt.Errorf("ENV cannot be empty")
	}

	validEnvs := []string{"dev", "staging", "prod", "test"}
	env = strings.ToLower(env)

	for _, validEnv := range validEnvs {
		if env == validEnv {
			return nil
		}
	}

	return fmt.Errorf("ENV must be one of: %v, got: %s", validEnvs, env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateBaseURL validates the SNOMED_BASE_URL environment variable
func validateBaseURL(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("SNOMED_BASE_URL cannot be empty")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("SNOMED_BASE_URL must be a valid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("SNOMED_BASE_URL must use http or https, got: %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("SNOMED_BASE_URL must include a host")
	}

	return nil
}

// validateConceptID validates that a required SNOMED CT identifier variable
// is set and numeric
func validateConceptID(id, configName string) error {
	if id == "" {
		return fmt.Errorf("invalid %s: cannot be empty", configName)
	}

	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("invalid %s: must be numeric, got: %s", configName, id)
		}
	}

	if len(id) > 18 {
		return fmt.Errorf("invalid %s: too long (max 18 digits), got: %s", configName, id)
	}

	return nil
}

// validateRunTimes validates the RECONCILE_AT environment variable,
// a semicolon-separated list of HH:MM times
func validateRunTimes(times string) error {
	if times == "" {
		return fmt.Errorf("RECONCILE_AT cannot be empty")
	}

	for _, t := range strings.Split(times, ";") {
		parts := strings.Split(t, ":")
		if len(parts) != 2 {
			return fmt.Errorf("RECONCILE_AT entry must be HH:MM, got: %s", t)
		}

		hour, err := strconv.Atoi(parts[0])
		if err != nil || hour < 0 || hour > 23 {
			return fmt.Errorf("RECONCILE_AT entry has invalid hour: %s", t)
		}

		minute, err := strconv.Atoi(parts[1])
		if err != nil || minute < 0 || minute > 59 {
			return fmt.Errorf("RECONCILE_AT entry has invalid minute: %s", t)
		}
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"SNOMED_BASE_URL",
		"SNOMED_BRANCH",
		"SNOMED_RATE_LIMIT",
		"WORKERS",
		"NATIONAL_NAMESPACE_ID",
		"NATIONAL_LOCALE",
		"EXTENSION_MODULE_ID",
		"NATIONAL_LANGUAGE_REFSET_ID",
		"HAS_DOSE_FORM_ID",
		"HAS_ACTIVE_INGREDIENT_ID",
		"HAS_UNIT_ID",
		"REGISTRY_URL",
		"REGISTRY_FILE",
		"REPORT_DIR",
		"RECONCILE_AT",
		"RUN_ONCE",
	}
}

// ValidateAllEnvVars checks if all required environment variables are set
func ValidateAllEnvVars() error {
	requiredVars := []string{
		"SNOMED_BASE_URL",
		"NATIONAL_NAMESPACE_ID",
		"NATIONAL_LOCALE",
		"EXTENSION_MODULE_ID",
		"HAS_DOSE_FORM_ID",
		"HAS_ACTIVE_INGREDIENT_ID",
		"HAS_UNIT_ID",
	}
	missingVars := []string{}

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
