package config

import "time"

type SessionConfig interface {
	GetRequestTimeout() time.Duration
	GetMinRefreshInterval() time.Duration
	GetPeriodicRefreshInterval() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRequestTimeout() time.Duration {
	return GetEnvDuration("REQUEST_TIMEOUT", 15*time.Second)
}

// GetMinRefreshInterval is the throttle window shared by every refresh trigger
func (Session) GetMinRefreshInterval() time.Duration {
	return GetEnvDuration("MIN_REFRESH_INTERVAL", 5*time.Minute)
}

func (Session) GetPeriodicRefreshInterval() time.Duration {
	return GetEnvDuration("PERIODIC_REFRESH_INTERVAL", 30*time.Minute)
}
