package booking

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jrsteele09/club-booking-client/internal/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultStatusConcurrency = 8

// StatusLookup fetches the raw booking status of one course
type StatusLookup interface {
	BookingStatus(ctx context.Context, courseID string) (json.RawMessage, error)
}

// Reconciler fetches booking statuses for many courses at once.
type Reconciler struct {
	lookup  StatusLookup
	log     zerolog.Logger
	metrics *metrics.Metrics
	limit   int
}

// NewReconciler creates a Reconciler. It honours WithLogger, WithMetrics and WithStatusConcurrency.
func NewReconciler(lookup StatusLookup, options ...Option) (*Reconciler, error) {
	if lookup == nil {
		return nil, errors.New("[NewReconciler] status lookup is required")
	}
	s := newSettings(options)
	return &Reconciler{
		lookup:  lookup,
		log:     s.log,
		metrics: s.metrics,
		limit:   s.statusConcurrency,
	}, nil
}

// FetchStatuses looks up every unique id once. A failed lookup yields
// NotBooked for that id only; the batch itself never fails.
func (r *Reconciler) FetchStatuses(ctx context.Context, ids []string) map[string]Status {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	out := make(map[string]Status, len(unique))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.limit)
	for _, id := range unique {
		g.Go(func() error {
			status := r.fetchOne(ctx, id)
			mu.Lock()
			out[id] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (r *Reconciler) fetchOne(ctx context.Context, id string) Status {
	raw, err := r.lookup.BookingStatus(ctx, id)
	if err != nil {
		r.metrics.RecordStatusLookupFailure()
		r.log.Warn().Err(err).Str("course_id", id).Msg("booking status lookup failed")
		return NotBooked
	}
	return ParseStatus(raw)
}
