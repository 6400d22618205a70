// Package alert formats and sends operator SMS notifications.
package alert

import (
	"fmt"
	"log"

	"github.com/sweeney/flood-watchdog/internal/logic"
	"github.com/sweeney/flood-watchdog/internal/modem"
)

// Dispatcher notifies a list of operators about watchdog events.
type Dispatcher struct {
	gateway   modem.Gateway
	operators []string
	site      string
}

// NewDispatcher creates a Dispatcher sending through the given gateway.
// site names the monitored location in the message texts.
func NewDispatcher(gateway modem.Gateway, operators []string, site string) *Dispatcher {
	return &Dispatcher{gateway: gateway, operators: operators, site: site}
}

// Dispatch sends the notification for an alert-worthy event to every
// operator. Each send is independent: a failure for one operator is logged
// and does not block the rest. Returns the number of successful sends.
func (d *Dispatcher) Dispatch(e logic.Event) int {
	text, err := d.Message(e)
	if err != nil {
		log.Printf("alert: %v", err)
		return 0
	}
	sent := 0
	for _, number := range d.operators {
		if err := d.gateway.Send(number, text); err != nil {
			log.Printf("alert: notify %s: %v", number, err)
			continue
		}
		sent++
	}
	return sent
}

// Message returns the operator-facing text for an event, or an error for
// event kinds that carry no alert.
func (d *Dispatcher) Message(e logic.Event) (string, error) {
	switch e.Type {
	case logic.EventWaterDetected:
		return fmt.Sprintf("Water has been detected at %s for the past %dm!",
			d.site, e.WaterStreak*logic.MinutesPerCycle), nil
	case logic.EventWaterRemoved:
		return fmt.Sprintf("The water is no longer detected at %s.", d.site), nil
	case logic.EventSignalLost:
		return fmt.Sprintf("The connection to the flood monitoring system at %s has been lost for %dm.",
			d.site, e.MissingCycles*logic.MinutesPerCycle), nil
	case logic.EventSignalRestored:
		return fmt.Sprintf("The connection to the flood monitoring system at %s has been restored.",
			d.site), nil
	default:
		return "", fmt.Errorf("no alert message for event %s", e.Type)
	}
}
