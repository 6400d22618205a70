// Package light maps the logical indicator state onto the three-color relay
// lamp.
package light

import (
	"fmt"
	"log"
	"time"

	"github.com/sweeney/flood-watchdog/internal/logic"
	"github.com/sweeney/flood-watchdog/internal/relay"
)

// Controller drives the red/amber/green lamp channels on a relay board.
// It keeps no state of its own; the board is the source of truth.
type Controller struct {
	board relay.Board
	red   int
	amber int
	green int
}

// New creates a Controller for the given channel wiring.
func New(board relay.Board, red, amber, green int) *Controller {
	return &Controller{board: board, red: red, amber: amber, green: green}
}

// Set applies the given logical state to the lamp.
//
// The mapping is deliberately asymmetric: WATER does not clear a previously
// lit amber, and LOST_SIGNAL does not clear a previously lit red. When both
// conditions are abnormal at once an operator sees both lamps. Do not "fix"
// this into a strict priority scheme.
func (c *Controller) Set(state logic.Indicator) error {
	switch state {
	case logic.IndicatorNormal:
		return c.apply(
			op{c.amber, false},
			op{c.red, false},
			op{c.green, true},
		)
	case logic.IndicatorWater:
		return c.apply(
			op{c.green, false},
			op{c.red, true},
		)
	case logic.IndicatorLostSignal:
		return c.apply(
			op{c.green, false},
			op{c.amber, true},
		)
	default:
		log.Printf("light: unknown indicator %q, leaving lamp unchanged", state)
		return nil
	}
}

type op struct {
	channel int
	on      bool
}

// apply attempts every switch even if one fails, returning the first error.
func (c *Controller) apply(ops ...op) error {
	var firstErr error
	for _, o := range ops {
		if err := c.board.Set(o.channel, o.on); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("switch channel %d: %w", o.channel, err)
		}
	}
	return firstErr
}

// SelfTest flashes red, amber, and green in turn for one second each so an
// operator at the cabinet can verify all three bulbs at startup.
func (c *Controller) SelfTest(sleep func(time.Duration)) error {
	for _, channel := range []int{c.red, c.amber, c.green} {
		if err := c.board.Set(channel, true); err != nil {
			return fmt.Errorf("self test channel %d: %w", channel, err)
		}
		sleep(time.Second)
		if err := c.board.Set(channel, false); err != nil {
			return fmt.Errorf("self test channel %d: %w", channel, err)
		}
	}
	return nil
}

// FaultFlash blinks the amber lamp for one second to make gateway faults
// visible at the cabinet. If amber is already lit (signal lost) it is left
// alone.
func (c *Controller) FaultFlash(sleep func(time.Duration)) error {
	on, err := c.board.Get(c.amber)
	if err != nil {
		return fmt.Errorf("read amber state: %w", err)
	}
	if on {
		return nil
	}
	if err := c.board.Set(c.amber, true); err != nil {
		return fmt.Errorf("flash amber: %w", err)
	}
	sleep(time.Second)
	if err := c.board.Set(c.amber, false); err != nil {
		return fmt.Errorf("flash amber: %w", err)
	}
	return nil
}
