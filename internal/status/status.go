// Package status provides a thread-safe status tracker for the flood
// watchdog daemon. It is read by the HTTP status page and feeds the MQTT
// system event payloads.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/flood-watchdog/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	TickMs            int64
	CycleLength       int
	DisconnectMinutes int
	WaterMinutes      int
	Site              string
	TargetNumber      string
	Operators         int
	Broker            string
	HTTPAddr          string
}

// Sample is the escalation state captured on a tick.
type Sample struct {
	Indicator     logic.Indicator
	Connected     bool
	Wet           bool
	AwaitingReply bool
	WaterStreak   int
	MissingCycles int
	Counts        logic.Counters
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Sample
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config. The
// initial sample reports a connected, dry sensor with a green lamp.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Sample: Sample{
				Indicator: logic.IndicatorNormal,
				Connected: true,
			},
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the escalation sample. Called from the poll loop.
func (t *Tracker) Update(s Sample) {
	t.mu.Lock()
	t.snap.Sample = s
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
