package relay

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// DefaultI2CAddr is the factory address of the Seeed relay board.
const DefaultI2CAddr = 0x20

// bankRegister is the board's output register. Bits are active-low: a
// cleared bit energizes the relay.
const bankRegister = 0x06

// I2CBoard drives a Seeed relay board v1 over I2C. The board has no
// readable output state, so a shadow byte mirrors the bank register.
type I2CBoard struct {
	bus  i2c.BusCloser
	dev  *i2c.Dev
	bank byte
}

// NewI2CBoard opens the I2C bus (empty name selects the first available) and
// switches every relay off. There is no retry loop here: the board is wired
// directly to the Pi and is assumed present, unlike the modem.
func NewI2CBoard(busName string, addr uint16) (*I2CBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}

	b := &I2CBoard{
		bus:  bus,
		dev:  &i2c.Dev{Addr: addr, Bus: bus},
		bank: 0xFF,
	}
	if err := b.flush(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("reset relay bank: %w", err)
	}
	return b, nil
}

// Set turns the given channel on or off.
func (b *I2CBoard) Set(channel int, on bool) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	bit := byte(1) << uint(channel-1)
	if on {
		b.bank &^= bit
	} else {
		b.bank |= bit
	}
	return b.flush()
}

// Get reports the shadowed state of the given channel.
func (b *I2CBoard) Get(channel int) (bool, error) {
	if err := checkChannel(channel); err != nil {
		return false, err
	}
	bit := byte(1) << uint(channel-1)
	return b.bank&bit == 0, nil
}

// AllOff de-energizes every relay.
func (b *I2CBoard) AllOff() error {
	b.bank = 0xFF
	return b.flush()
}

func (b *I2CBoard) flush() error {
	if err := b.dev.Tx([]byte{bankRegister, b.bank}, nil); err != nil {
		return fmt.Errorf("write relay bank: %w", err)
	}
	return nil
}

// Close releases the I2C bus. Relays keep their last state; callers that
// want them off must call AllOff first.
func (b *I2CBoard) Close() error {
	return b.bus.Close()
}
