// Package clock decides which calendar day a check-in belongs to.
//
// The day may be shifted by the persisted simulation setting so multi-day
// events can be exercised without waiting for midnight. Stored timestamps
// always use the real wall clock; only day bucketing is simulated.
package clock

import (
	"context"
	"sync"
	"time"

	"github.com/rongwang/checkin-server/internal/models"
	"github.com/rongwang/checkin-server/internal/utils"
)

// Provider resolves the current check-in day.
type Provider interface {
	CurrentDate(ctx context.Context) Date
	// ActualDate is the unshifted calendar day.
	ActualDate() Date
	// Now is the real wall-clock time used for stored timestamps.
	Now() time.Time
}

// SettingsSource reads the persisted simulation setting.
type SettingsSource interface {
	GetSimulationSetting(ctx context.Context) (models.SimulationSetting, error)
}

// SimulatedClock applies the stored simulation offset to the real date.
type SimulatedClock struct {
	settings SettingsSource
	loc      *time.Location
	now      func() time.Time
	logger   *utils.Logger
}

// Option configures a SimulatedClock.
type Option func(*SimulatedClock)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) Option {
	return func(c *SimulatedClock) { c.now = now }
}

// WithLogger sets the logger used for settings read failures.
func WithLogger(l *utils.Logger) Option {
	return func(c *SimulatedClock) { c.logger = l }
}

// NewSimulatedClock returns a clock reading the offset from settings.
// Days are computed in loc; nil means UTC.
func NewSimulatedClock(settings SettingsSource, loc *time.Location, opts ...Option) *SimulatedClock {
	if loc == nil {
		loc = time.UTC
	}
	c := &SimulatedClock{
		settings: settings,
		loc:      loc,
		now:      time.Now,
		logger:   utils.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentDate returns today, shifted by the offset when simulation is
// enabled. If the settings cannot be read the real date is returned.
func (c *SimulatedClock) CurrentDate(ctx context.Context) Date {
	today := c.ActualDate()
	if c.settings == nil {
		return today
	}

	s, err := c.settings.GetSimulationSetting(ctx)
	if err != nil {
		c.logger.Warn("simulation settings unavailable, using real date",
			"error", err, "date", today.String())
		return today
	}

	if !s.Enabled {
		return today
	}
	return today.AddDays(ClampOffset(s.OffsetDays))
}

// ActualDate returns the real calendar day.
func (c *SimulatedClock) ActualDate() Date {
	return DateOf(c.now(), c.loc)
}

// Now returns the real wall-clock time in UTC.
func (c *SimulatedClock) Now() time.Time {
	return c.now().UTC()
}

// ClampOffset bounds an offset to the allowed simulation range.
func ClampOffset(days int) int {
	if days < models.MinSimulationOffset {
		return models.MinSimulationOffset
	}
	if days > models.MaxSimulationOffset {
		return models.MaxSimulationOffset
	}
	return days
}

// FixedClock is a Provider pinned to a settable day. Safe for concurrent use.
type FixedClock struct {
	mu    sync.Mutex
	today Date
	now   time.Time
}

// NewFixedClock returns a clock whose current and actual date is today.
func NewFixedClock(today Date) *FixedClock {
	return &FixedClock{
		today: today,
		now:   time.Date(today.Year, today.Month, today.Day, 9, 0, 0, 0, time.UTC),
	}
}

func (c *FixedClock) CurrentDate(context.Context) Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today
}

func (c *FixedClock) ActualDate() Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.today
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to a new day.
func (c *FixedClock) Set(today Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = today
	c.now = time.Date(today.Year, today.Month, today.Day, 9, 0, 0, 0, time.UTC)
}

// Advance moves the clock n days forward.
func (c *FixedClock) Advance(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.today = c.today.AddDays(n)
	c.now = c.now.AddDate(0, 0, n)
}
