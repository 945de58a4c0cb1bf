package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
)

// ImportConfig is read from the environment (and .env) once per process.
type ImportConfig struct {
	StoreBaseURL         string `validate:"required,url"`
	StoreAPIKey          string `validate:"required"`
	StoreBaseID          string `validate:"required"`
	StoreRateLimitPerSec int    `validate:"min=1,max=50"`

	POTable            string `validate:"required"`
	NonCatalogTable    string `validate:"required"`
	NonCatalogKeyField string `validate:"required"`
	VendorField        string `validate:"required"`
	PhaseField         string `validate:"required"`

	Concurrency      int `validate:"min=1,max=64"`
	UnitNameShim     bool
	CreateNonCatalog bool
	LockTTL          time.Duration `validate:"min=1s"`
	Timezone         string
}

var validate = validator.New()

func LoadImportConfig() (ImportConfig, error) {
	cfg := ImportConfig{
		StoreBaseURL:         stringFromEnv("RECORD_STORE_BASE_URL", "https://api.airtable.com"),
		StoreAPIKey:          strings.TrimSpace(os.Getenv("RECORD_STORE_API_KEY")),
		StoreBaseID:          strings.TrimSpace(os.Getenv("RECORD_STORE_BASE_ID")),
		StoreRateLimitPerSec: intFromEnv("RECORD_STORE_RATE_LIMIT_PER_SEC", 5),
		POTable:              stringFromEnv("PO_TABLE", "Project PO"),
		NonCatalogTable:      stringFromEnv("NON_CATALOG_TABLE", "Non-Catalog"),
		NonCatalogKeyField:   stringFromEnv("NON_CATALOG_KEY_FIELD", "SKU"),
		VendorField:          stringFromEnv("PO_VENDOR_FIELD", "Vendor"),
		PhaseField:           stringFromEnv("PO_PHASE_FIELD", "Phase"),
		Concurrency:          intFromEnv("PO_IMPORT_CONCURRENCY", 4),
		UnitNameShim:         boolFromEnv("PO_IMPORT_UNIT_SHIM", true),
		CreateNonCatalog:     boolFromEnv("PO_IMPORT_CREATE_NON_CATALOG", false),
		LockTTL:              time.Duration(intFromEnv("PO_IMPORT_LOCK_TTL_SECONDS", 30)) * time.Second,
		Timezone:             strings.TrimSpace(os.Getenv("PO_IMPORT_TIMEZONE")),
	}
	if err := validate.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("invalid import config: %w", err)
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			return cfg, fmt.Errorf("invalid PO_IMPORT_TIMEZONE: %w", err)
		}
	}
	return cfg, nil
}

// Location is UTC unless PO_IMPORT_TIMEZONE names a zone.
func (c ImportConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func stringFromEnv(key string, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
