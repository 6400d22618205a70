package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string     `json:"event,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Indicator     string     `json:"indicator"`
	Connected     bool       `json:"connected"`
	Wet           bool       `json:"wet"`
	AwaitingReply bool       `json:"awaiting_reply"`
	WaterStreak   int        `json:"water_streak"`
	MissingCycles int        `json:"missing_cycles"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	StartTime     string     `json:"start_time"`
	Timestamp     string     `json:"timestamp"`
	MQTT          MQTTStatus `json:"mqtt"`
	Counts        CountsJSON `json:"event_counts"`
	Config        ConfigJSON `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Replies        int `json:"replies"`
	WaterAlerts    int `json:"water_alerts"`
	Removals       int `json:"removals"`
	Disconnects    int `json:"disconnects"`
	Restores       int `json:"restores"`
	MissedCycles   int `json:"missed_cycles"`
	UnknownSenders int `json:"unknown_senders"`
	UnknownTexts   int `json:"unknown_texts"`
}

// ConfigJSON is the JSON representation of daemon config. Operator phone
// numbers are deliberately not exposed, only their count.
type ConfigJSON struct {
	TickMs            int64  `json:"tick_ms"`
	CycleLength       int    `json:"cycle_length"`
	DisconnectMinutes int    `json:"disconnect_minutes"`
	WaterMinutes      int    `json:"water_minutes"`
	Site              string `json:"site"`
	Operators         int    `json:"operators"`
	Broker            string `json:"broker,omitempty"`
	HTTPAddr          string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	return StatusInner{
		Indicator:     string(snap.Indicator),
		Connected:     snap.Connected,
		Wet:           snap.Wet,
		AwaitingReply: snap.AwaitingReply,
		WaterStreak:   snap.WaterStreak,
		MissingCycles: snap.MissingCycles,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Replies:        snap.Counts.Replies,
			WaterAlerts:    snap.Counts.WaterAlerts,
			Removals:       snap.Counts.Removals,
			Disconnects:    snap.Counts.Disconnects,
			Restores:       snap.Counts.Restores,
			MissedCycles:   snap.Counts.MissedCycles,
			UnknownSenders: snap.Counts.UnknownSenders,
			UnknownTexts:   snap.Counts.UnknownTexts,
		},
		Config: ConfigJSON{
			TickMs:            snap.Config.TickMs,
			CycleLength:       snap.Config.CycleLength,
			DisconnectMinutes: snap.Config.DisconnectMinutes,
			WaterMinutes:      snap.Config.WaterMinutes,
			Site:              snap.Config.Site,
			Operators:         snap.Config.Operators,
			Broker:            snap.Config.Broker,
			HTTPAddr:          snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
