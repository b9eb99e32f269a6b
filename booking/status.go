// Package booking keeps a local view of the course list and applies booking
// changes to it optimistically, confirming or rolling them back once the
// server answers. Booking statuses are reconciled in batches.
package booking

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/club-booking-client/gateway"
)

// Status is the caller's booking state for one course
type Status string

const (
	NotBooked Status = "not_booked"
	Confirmed Status = "confirmed"
	Canceled  Status = "canceled"
	Pending   Status = "pending" // Accepted from the server, never set locally
)

var knownStatuses = map[string]Status{
	"not_booked": NotBooked,
	"confirmed":  Confirmed,
	"canceled":   Canceled,
	"cancelled":  Canceled,
	"pending":    Pending,
}

// ParseStatus reads a status from any accepted payload: {"status": ...}, a
// bare string, or either of those inside a {data} or {success, data} envelope,
// possibly serialized into a JSON string. Anything unrecognised is NotBooked.
func ParseStatus(raw json.RawMessage) Status {
	res := gateway.Normalize(http.StatusOK, raw)
	if len(res.Data) == 0 {
		return NotBooked
	}

	var value string
	if json.Unmarshal(res.Data, &value) == nil {
		return statusOf(value)
	}
	if _, err := res.Field("status", &value); err == nil && value != "" {
		return statusOf(value)
	}
	return NotBooked
}

func statusOf(value string) Status {
	if s, ok := knownStatuses[strings.ToLower(strings.TrimSpace(value))]; ok {
		return s
	}
	return NotBooked
}

// Held reports whether the server holds or is processing a booking
func (s Status) Held() bool {
	return s == Confirmed || s == Pending
}
