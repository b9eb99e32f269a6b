package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// SchedulePeriodicRefresh refreshes the credential every interval until
// logout. Scheduling again replaces the previous job.
func (m *Manager) SchedulePeriodicRefresh(interval time.Duration) error {
	if interval <= 0 {
		return errors.Errorf("[Manager.SchedulePeriodicRefresh] invalid interval %s", interval)
	}

	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), m.periodicRefresh); err != nil {
		return errors.Wrap(err, "[Manager.SchedulePeriodicRefresh]")
	}

	m.cronMu.Lock()
	previous := m.scheduler
	m.scheduler = c
	m.cronMu.Unlock()

	if previous != nil {
		previous.Stop()
	}
	c.Start()
	m.log.Debug().Dur("interval", interval).Msg("periodic refresh scheduled")
	return nil
}

// StopPeriodicRefresh cancels the periodic job, if any
func (m *Manager) StopPeriodicRefresh() {
	m.cronMu.Lock()
	c := m.scheduler
	m.scheduler = nil
	m.cronMu.Unlock()

	if c != nil {
		c.Stop()
	}
}

func (m *Manager) periodicRefresh() {
	if m.store.Token() == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := m.Refresh(ctx); err != nil {
		m.log.Warn().Err(err).Msg("periodic refresh failed")
	}
}
