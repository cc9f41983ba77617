// Package config handles runtime configuration
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string

	// Logging
	LogLevel      string
	LogFile       string // empty logs to stdout only
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// Capture policy
	CaptureInterval       time.Duration
	DedupEnabled          bool
	DedupThreshold        float64
	ExcludedApps          []string
	AllDisplays           bool
	MaxDimension          int
	CaptureOnWindowChange bool
	IncludeBrowserURL     bool

	// Tunable timing constants; empirically chosen defaults
	BatchWindow time.Duration
	Debounce    time.Duration
	MetadataTTL time.Duration
}

func Load() *Config {
	return &Config{
		HTTPAddr:              getEnv("HTTP_ADDR", ":8600"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFile:               getEnv("LOG_FILE", ""),
		LogMaxSizeMB:          getEnvInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups:         getEnvInt("LOG_MAX_BACKUPS", 3),
		LogMaxAgeDays:         getEnvInt("LOG_MAX_AGE_DAYS", 14),
		CaptureInterval:       getEnvMillis("CAPTURE_INTERVAL_MS", 1000),
		DedupEnabled:          getEnvBool("DEDUP_ENABLED", true),
		DedupThreshold:        getEnvFloat("DEDUP_THRESHOLD", 0.98),
		ExcludedApps:          getEnvList("EXCLUDED_APPS", nil),
		AllDisplays:           getEnvBool("ALL_DISPLAYS", false),
		MaxDimension:          getEnvInt("MAX_DIMENSION", 0),
		CaptureOnWindowChange: getEnvBool("CAPTURE_ON_WINDOW_CHANGE", true),
		IncludeBrowserURL:     getEnvBool("INCLUDE_BROWSER_URL", false),
		BatchWindow:           getEnvMillis("BATCH_WINDOW_MS", 350),
		Debounce:              getEnvMillis("DEBOUNCE_MS", 200),
		MetadataTTL:           getEnvMillis("METADATA_TTL_MS", 250),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvMillis(key string, defMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defMillis)) * time.Millisecond
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
