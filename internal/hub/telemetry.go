// ABOUTME: Periodic telemetry publishers feeding the dashboard event stream
// ABOUTME: Cron-scheduled drone location and region device count producers

package hub

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/robfig/cron/v3"
)

const regionRadiusMeters = 200

// TelemetryOptions tunes the periodic publishers. Zero values fall back to
// defaults; the base coordinate defaults to the Melbourne CBD.
type TelemetryOptions struct {
	LocationInterval    time.Duration
	DeviceCountInterval time.Duration
	BaseLat             float64
	BaseLon             float64
}

// Telemetry runs the simulated telemetry producers on cron schedules:
// a drone location update and a region device count sample. A publish that
// reaches nobody never stops the schedule.
type Telemetry struct {
	hub     *Hub
	cron    *cron.Cron
	baseLat float64
	baseLon float64
	logger  *slog.Logger
}

// NewTelemetry builds the publishers over the given hub.
func NewTelemetry(h *Hub, opts TelemetryOptions, logger *slog.Logger) *Telemetry {
	if opts.LocationInterval <= 0 {
		opts.LocationInterval = 10 * time.Second
	}
	if opts.DeviceCountInterval <= 0 {
		opts.DeviceCountInterval = 30 * time.Second
	}
	if opts.BaseLat == 0 && opts.BaseLon == 0 {
		opts.BaseLat = -37.8136
		opts.BaseLon = 144.9631
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Telemetry{
		hub:     h,
		cron:    cron.New(),
		baseLat: opts.BaseLat,
		baseLon: opts.BaseLon,
		logger:  logger.With("component", "telemetry"),
	}
	t.cron.Schedule(cron.Every(opts.LocationInterval), cron.FuncJob(t.publishLocation))
	t.cron.Schedule(cron.Every(opts.DeviceCountInterval), cron.FuncJob(t.publishDeviceCount))
	return t
}

// Start begins the schedules.
func (t *Telemetry) Start() {
	t.cron.Start()
	t.logger.Info("telemetry publishers started")
}

// Stop halts the schedules and waits for in-flight publishes to finish.
func (t *Telemetry) Stop() {
	<-t.cron.Stop().Done()
	t.logger.Info("telemetry publishers stopped")
}

func (t *Telemetry) publishLocation() {
	delivered := t.hub.Publish(t.LocationUpdate())
	t.logger.Debug("location update published", "delivered", delivered)
}

func (t *Telemetry) publishDeviceCount() {
	delivered := t.hub.Publish(RegionDeviceCount())
	t.logger.Debug("region device count published", "delivered", delivered)
}

// LocationUpdate builds one simulated drone position: the base coordinate
// with up to ±0.005 degrees of jitter, rounded to six decimals.
func (t *Telemetry) LocationUpdate() Event {
	return Event{
		"event_type": "location_update",
		"lat":        round6(t.baseLat + (rand.Float64()-0.5)*0.01),
		"lon":        round6(t.baseLon + (rand.Float64()-0.5)*0.01),
	}
}

// RegionDeviceCount builds one simulated device density sample: between 50
// and 100 devices within the fixed region radius.
func RegionDeviceCount() Event {
	return Event{
		"event_type":   "region_device_count",
		"radius":       regionRadiusMeters,
		"device_count": 50 + rand.IntN(51),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
