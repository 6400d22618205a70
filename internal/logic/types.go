// Package logic contains pure escalation logic for the flood watchdog.
// This package has NO external dependencies (no modem, relay, OS, or
// time.Sleep). Ticks and cycle boundaries are driven entirely by the caller.
package logic

import (
	"errors"
	"fmt"
)

// Indicator represents the logical state of the three-color lamp.
type Indicator string

const (
	IndicatorNormal     Indicator = "NORMAL"      // green
	IndicatorWater      Indicator = "WATER"       // red
	IndicatorLostSignal Indicator = "LOST_SIGNAL" // amber
)

// EventType represents a state transition or notable observation.
type EventType string

const (
	// Water machine events, driven by reply contents.
	EventWaterDetected EventType = "WATER_DETECTED"
	EventWaterProgress EventType = "WATER_PROGRESS"
	EventWaterRemoved  EventType = "WATER_REMOVED"
	EventAllClear      EventType = "ALL_CLEAR"

	// Connection events, driven by missed replies.
	EventMissedCycle    EventType = "MISSED_CYCLE"
	EventSignalLost     EventType = "SIGNAL_LOST"
	EventSignalRestored EventType = "SIGNAL_RESTORED"
)

// Event represents a state change to act on. The caller applies the side
// effects: lamp changes go through the light controller, alerts through the
// dispatcher, and every event is logged.
type Event struct {
	Type EventType

	// Alert is true when operators should be notified by SMS.
	Alert bool

	// Indicator is the lamp directive; empty means leave the lamp alone.
	Indicator Indicator

	// WaterStreak is the consecutive water-positive reply count at emit time.
	WaterStreak int

	// MissingCycles is the consecutive missed-cycle count at emit time.
	MissingCycles int
}

// MinutesPerCycle is the wall-time worth of one outer cycle with the default
// tick and cycle length (12 ticks of 10s). The disconnect and water
// thresholds are configured in minutes and halved into cycle counts.
const MinutesPerCycle = 2

// Errors returned by HandleReply for input that is logged and discarded.
var (
	ErrUnknownSender = errors.New("reply from unknown sender")
	ErrUnknownText   = errors.New("unrecognized reply text")
)

// Config holds the protocol constants and thresholds for a Tracker.
type Config struct {
	// TargetNumber is the sensor's phone number. Replies from any other
	// number are discarded.
	TargetNumber string

	// WaterText and NoWaterText are the exact reply bodies expected from
	// the sensor. Matching is literal, not parsed.
	WaterText   string
	NoWaterText string

	// CycleLength is ticks per outer cycle. One request is sent per cycle.
	CycleLength int

	// DisconnectMinutes is how long the sensor may stay silent before the
	// connection is considered lost. Must be a multiple of MinutesPerCycle.
	DisconnectMinutes int

	// WaterMinutes is how long water must be continuously reported before
	// the alarm is raised. Must be a multiple of MinutesPerCycle.
	WaterMinutes int
}

// Validate checks the configuration at startup. Violations are fatal: the
// daemon must not enter the main loop with a threshold it cannot represent.
func (c Config) Validate() error {
	if c.TargetNumber == "" {
		return errors.New("target number must not be empty")
	}
	if c.WaterText == "" || c.NoWaterText == "" {
		return errors.New("reply texts must not be empty")
	}
	if c.WaterText == c.NoWaterText {
		return errors.New("water and no-water reply texts must differ")
	}
	if c.CycleLength <= 0 {
		return fmt.Errorf("cycle length must be positive, got %d", c.CycleLength)
	}
	if c.DisconnectMinutes <= 0 || c.DisconnectMinutes%MinutesPerCycle != 0 {
		return fmt.Errorf("disconnect time must be a positive multiple of %dm, got %dm",
			MinutesPerCycle, c.DisconnectMinutes)
	}
	if c.WaterMinutes <= 0 || c.WaterMinutes%MinutesPerCycle != 0 {
		return fmt.Errorf("water time must be a positive multiple of %dm, got %dm",
			MinutesPerCycle, c.WaterMinutes)
	}
	return nil
}

// DisconnectCycles is the missed-cycle count at which the connection is
// considered lost.
func (c Config) DisconnectCycles() int {
	return c.DisconnectMinutes / MinutesPerCycle
}

// WaterReplies is the consecutive water-positive reply count at which the
// alarm is raised.
func (c Config) WaterReplies() int {
	return c.WaterMinutes / MinutesPerCycle
}

// Counters tracks event totals since startup, for the status page and
// heartbeat payloads.
type Counters struct {
	Replies        int
	WaterAlerts    int
	Removals       int
	Disconnects    int
	Restores       int
	MissedCycles   int
	UnknownSenders int
	UnknownTexts   int
}
