package logic

// Tracker owns the escalation state and converts inbound replies and empty
// ticks into events. Exactly one request is sent per outer cycle; the caller
// invokes BeginCycle when it sends the request, TickNoReply on every empty
// drain, HandleReply for each inbound message, and EndCycle after the last
// tick of the cycle.
type Tracker struct {
	cfg Config

	// awaiting is true from request-send until a matching reply arrives or
	// the cycle ends.
	awaiting bool

	// missingLoops counts ticks within the current cycle with no reply yet.
	// Always in [0, cfg.CycleLength].
	missingLoops int

	// missingCycles counts consecutive cycles that ended with zero replies.
	missingCycles int

	// waterStreak counts consecutive water-positive replies.
	waterStreak int

	// wet is latched once waterStreak crosses the confirmation threshold and
	// drives the WATER_REMOVED transition.
	wet bool

	// down is latched when missingCycles crosses the disconnect threshold so
	// the SIGNAL_LOST alert fires once per crossing, not once per cycle.
	down bool

	counters Counters
}

// NewTracker creates a Tracker with all counters zero.
// Returns an error if the config is invalid.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{cfg: cfg}, nil
}

// BeginCycle records that the status request for a new outer cycle was
// issued. The missing-tick count restarts; missingCycles is deliberately
// untouched, it only resets on a matching reply.
func (t *Tracker) BeginCycle() {
	t.awaiting = true
	t.missingLoops = 0
}

// TickNoReply records a tick whose drain returned no messages. Counts only
// while a reply is outstanding, and never past the cycle length.
func (t *Tracker) TickNoReply() {
	if t.awaiting && t.missingLoops < t.cfg.CycleLength {
		t.missingLoops++
	}
}

// HandleReply processes one inbound message.
//
// Replies from numbers other than the target are discarded without touching
// any state; ErrUnknownSender is returned so the caller can log them. For
// replies from the target the connection counters are reset (emitting
// SIGNAL_RESTORED first if the link was down) before the body is inspected,
// mirroring the device's actual behavior: any reply proves the link is up,
// even one with an unrecognized body. An unrecognized body then returns
// ErrUnknownText alongside any connection events, with the water counters
// untouched.
func (t *Tracker) HandleReply(sender, text string) ([]Event, error) {
	if sender != t.cfg.TargetNumber {
		t.counters.UnknownSenders++
		return nil, ErrUnknownSender
	}

	var events []Event
	if t.down {
		t.down = false
		t.counters.Restores++
		events = append(events, Event{
			Type:          EventSignalRestored,
			Alert:         true,
			MissingCycles: t.missingCycles,
		})
	}
	t.missingLoops = 0
	t.missingCycles = 0
	t.awaiting = false

	switch text {
	case t.cfg.WaterText:
		t.counters.Replies++
		t.waterStreak++
		return append(events, t.updateWater()...), nil
	case t.cfg.NoWaterText:
		t.counters.Replies++
		t.waterStreak = 0
		return append(events, t.updateWater()...), nil
	default:
		t.counters.UnknownTexts++
		return events, ErrUnknownText
	}
}

// updateWater runs the three-way water state machine after a recognized
// reply adjusted waterStreak.
func (t *Tracker) updateWater() []Event {
	threshold := t.cfg.WaterReplies()
	switch {
	case t.waterStreak == 0:
		if t.wet {
			t.wet = false
			t.counters.Removals++
			return []Event{{
				Type:      EventWaterRemoved,
				Alert:     true,
				Indicator: IndicatorNormal,
			}}
		}
		return []Event{{Type: EventAllClear, Indicator: IndicatorNormal}}

	case t.waterStreak < threshold:
		// Debouncing: green stays on until the streak reaches the threshold.
		return []Event{{Type: EventWaterProgress, WaterStreak: t.waterStreak}}

	default:
		// The alert deliberately repeats on every confirming reply past the
		// threshold, not just the first crossing.
		t.wet = true
		t.counters.WaterAlerts++
		return []Event{{
			Type:        EventWaterDetected,
			Alert:       true,
			Indicator:   IndicatorWater,
			WaterStreak: t.waterStreak,
		}}
	}
}

// EndCycle closes the current outer cycle. A cycle in which every tick went
// unanswered bumps missingCycles; crossing the disconnect threshold lights
// the amber lamp and alerts operators, once per crossing.
func (t *Tracker) EndCycle() []Event {
	if t.missingLoops < t.cfg.CycleLength {
		return nil
	}
	t.missingCycles++
	t.counters.MissedCycles++

	events := []Event{{Type: EventMissedCycle, MissingCycles: t.missingCycles}}
	if t.missingCycles >= t.cfg.DisconnectCycles() && !t.down {
		t.down = true
		t.counters.Disconnects++
		events = append(events, Event{
			Type:          EventSignalLost,
			Alert:         true,
			Indicator:     IndicatorLostSignal,
			MissingCycles: t.missingCycles,
		})
	}
	return events
}

// Indicator returns the logical lamp state as a pure function of
// (connected, wet), with a lost connection taking precedence.
func (t *Tracker) Indicator() Indicator {
	if t.down {
		return IndicatorLostSignal
	}
	if t.wet {
		return IndicatorWater
	}
	return IndicatorNormal
}

// Connected reports whether the sensor link is considered up.
func (t *Tracker) Connected() bool { return !t.down }

// Wet reports whether the water alarm is latched.
func (t *Tracker) Wet() bool { return t.wet }

// AwaitingReply reports whether a request is outstanding.
func (t *Tracker) AwaitingReply() bool { return t.awaiting }

// MissingLoops returns the unanswered tick count of the current cycle.
func (t *Tracker) MissingLoops() int { return t.missingLoops }

// MissingCycles returns the consecutive missed-cycle count.
func (t *Tracker) MissingCycles() int { return t.missingCycles }

// WaterStreak returns the consecutive water-positive reply count.
func (t *Tracker) WaterStreak() int { return t.waterStreak }

// CountersSnapshot returns a copy of the event totals since startup.
func (t *Tracker) CountersSnapshot() Counters { return t.counters }
