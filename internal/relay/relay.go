// Package relay provides relay board output control with hardware
// abstraction. The I2C implementation drives the Seeed relay board the
// indicator lamp is wired to; the GPIO implementation drives bare relay
// modules on GPIO lines. The fake implementation allows testing without
// hardware.
package relay

import "fmt"

// Board switches relay outputs.
type Board interface {
	// Set turns the given channel on or off.
	Set(channel int, on bool) error

	// Get reports whether the given channel is currently on.
	Get(channel int) (bool, error)

	// AllOff turns every channel off. Called during shutdown.
	AllOff() error

	// Close releases board resources.
	Close() error
}

// Default lamp wiring.
const (
	DefaultRedChannel   = 1
	DefaultAmberChannel = 2
	DefaultGreenChannel = 3
)

// MaxChannel is the highest relay channel on the supported boards.
const MaxChannel = 4

func checkChannel(channel int) error {
	if channel < 1 || channel > MaxChannel {
		return fmt.Errorf("relay channel %d out of range [1, %d]", channel, MaxChannel)
	}
	return nil
}
