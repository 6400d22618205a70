//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOBoard drives bare relay modules on GPIO output lines, for deployments
// without the I2C board. Channels map to BCM pin numbers.
type GPIOBoard struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
}

// NewGPIOBoard requests the given channel-to-pin lines as outputs, all
// initially off.
func NewGPIOBoard(chipName string, pins map[int]int) (*GPIOBoard, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	b := &GPIOBoard{chip: chip, lines: make(map[int]*gpiocdev.Line)}
	for channel, pin := range pins {
		if err := checkChannel(channel); err != nil {
			b.Close()
			return nil, err
		}
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("request pin %d for channel %d: %w", pin, channel, err)
		}
		b.lines[channel] = line
	}
	return b, nil
}

func (b *GPIOBoard) line(channel int) (*gpiocdev.Line, error) {
	line, ok := b.lines[channel]
	if !ok {
		return nil, fmt.Errorf("relay channel %d has no gpio line", channel)
	}
	return line, nil
}

// Set turns the given channel on or off.
func (b *GPIOBoard) Set(channel int, on bool) error {
	line, err := b.line(channel)
	if err != nil {
		return err
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set channel %d: %w", channel, err)
	}
	return nil
}

// Get reports whether the given channel is currently driven.
func (b *GPIOBoard) Get(channel int) (bool, error) {
	line, err := b.line(channel)
	if err != nil {
		return false, err
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read channel %d: %w", channel, err)
	}
	return v != 0, nil
}

// AllOff turns every requested channel off.
func (b *GPIOBoard) AllOff() error {
	var firstErr error
	for channel, line := range b.lines {
		if err := line.SetValue(0); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear channel %d: %w", channel, err)
		}
	}
	return firstErr
}

// Close releases all lines and the chip.
func (b *GPIOBoard) Close() error {
	var firstErr error
	for _, line := range b.lines {
		if err := line.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := b.chip.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
