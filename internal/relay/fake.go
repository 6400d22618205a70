package relay

import "fmt"

// FakeBoard is a test double that tracks channel states in memory and
// records the order of operations.
type FakeBoard struct {
	// States holds the current on/off state per channel.
	States map[int]bool

	// Ops records every mutation in order, e.g. "on 1", "off 3", "alloff".
	Ops []string

	// SetError, if set, is returned by Set and AllOff.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBoard creates a FakeBoard with all channels off.
func NewFakeBoard() *FakeBoard {
	return &FakeBoard{States: make(map[int]bool)}
}

// Set records and applies the switch.
func (f *FakeBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	if f.SetError != nil {
		return f.SetError
	}
	f.States[channel] = on
	verb := "off"
	if on {
		verb = "on"
	}
	f.Ops = append(f.Ops, fmt.Sprintf("%s %d", verb, channel))
	return nil
}

// Get returns the tracked state.
func (f *FakeBoard) Get(channel int) (bool, error) {
	if err := checkChannel(channel); err != nil {
		return false, err
	}
	return f.States[channel], nil
}

// AllOff clears every channel.
func (f *FakeBoard) AllOff() error {
	if f.SetError != nil {
		return f.SetError
	}
	for ch := range f.States {
		f.States[ch] = false
	}
	f.Ops = append(f.Ops, "alloff")
	return nil
}

// Close marks the board as closed.
func (f *FakeBoard) Close() error {
	f.Closed = true
	return nil
}
