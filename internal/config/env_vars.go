package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	apiBaseURLVar  = "CLUB_API_BASE_URL"
	appNameVar     = "APP_NAME"
	logLevelVar    = "LOG_LEVEL"
	metricsAddrVar = "METRICS_ADDR"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetAPIBaseURL returns the base URL of the club API, without a trailing slash
func (EnvVars) GetAPIBaseURL() string {
	return strings.TrimRight(GetEnv(apiBaseURLVar, "http://localhost:5000/api"), "/")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Club Booking")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

// GetMetricsAddr is the listen address for the metrics endpoint; empty disables it
func (EnvVars) GetMetricsAddr() string {
	return GetEnv(metricsAddrVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration ("90s", "5m"); invalid or empty values fall back to the default.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(envVar))
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetEnvInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(envVar))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
