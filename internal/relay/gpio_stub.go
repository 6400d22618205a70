//go:build !linux

package relay

import "errors"

// GPIOBoard is not available on non-Linux platforms.
type GPIOBoard struct{}

// NewGPIOBoard returns an error on non-Linux platforms.
func NewGPIOBoard(chipName string, pins map[int]int) (*GPIOBoard, error) {
	return nil, errors.New("relay: gpio backend not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (b *GPIOBoard) Set(channel int, on bool) error {
	return errors.New("relay: gpio backend not supported")
}

// Get is not implemented on non-Linux platforms.
func (b *GPIOBoard) Get(channel int) (bool, error) {
	return false, errors.New("relay: gpio backend not supported")
}

// AllOff is not implemented on non-Linux platforms.
func (b *GPIOBoard) AllOff() error {
	return errors.New("relay: gpio backend not supported")
}

// Close is not implemented on non-Linux platforms.
func (b *GPIOBoard) Close() error {
	return nil
}
