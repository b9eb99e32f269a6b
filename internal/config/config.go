package config

import (
	"log"

	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	SessionConfig
	BookingConfig
	StorageConfig
}

type EnvConfig interface {
	GetAPIBaseURL() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsAddr() string
}

type mainConfig struct {
	EnvVars
	Session
	Booking
	Storage
}

func New() Config {
	return mainConfig{}
}

// LoadDotEnv loads variables from the given .env files (default ".env") into the process
// environment. Variables already set in the environment win.
func LoadDotEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil {
		log.Printf("[config LoadDotEnv] no .env file loaded: %v", err)
	}
}
