// Package modem provides SMS send/receive with abstraction for testing.
// The real implementation drives a serial GSM modem; the fake allows
// scripting conversations without hardware.
package modem

// Message is one received SMS.
type Message struct {
	// Number is the sender in the form reported by the network.
	Number string
	// Text is the literal message body.
	Text string
}

// Gateway sends and receives text messages.
type Gateway interface {
	// Send delivers one SMS. A failure is non-fatal to the caller: outbound
	// sends never drive the escalation state, only inbound replies do.
	Send(number, text string) error

	// Drain consumes and returns all messages received since the previous
	// call, in arrival order. Returns an empty slice when there are none.
	Drain() ([]Message, error)

	// Close releases the modem. Best-effort, called during shutdown.
	Close() error
}

// SignalReporter is implemented by gateways that can report received signal
// strength, used to enrich fault logs.
type SignalReporter interface {
	// SignalStrength returns the RSSI as reported by AT+CSQ (0-31, 99 when
	// unknown).
	SignalStrength() (int, error)
}
