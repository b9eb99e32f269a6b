package config

type BookingConfig interface {
	GetStatusLookupConcurrency() int
	GetReconcileAfterMutation() bool
}

type Booking struct{}

var _ BookingConfig = Booking{}

func (Booking) GetStatusLookupConcurrency() int {
	return GetEnvInt("STATUS_LOOKUP_CONCURRENCY", 8)
}

func (Booking) GetReconcileAfterMutation() bool {
	return GetEnv("RECONCILE_AFTER_MUTATION", "true") == "true"
}
