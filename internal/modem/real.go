package modem

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/warthog618/modem/at"
	"github.com/warthog618/modem/gsm"
	"github.com/warthog618/modem/serial"
)

// SerialGateway drives a GSM modem on a serial port.
//
// Incoming messages are delivered asynchronously by the modem library's
// receive goroutine and queued; Drain hands them to the single-threaded poll
// loop in arrival order.
type SerialGateway struct {
	g   *gsm.GSM
	dev io.ReadWriteCloser

	mu    sync.Mutex
	inbox []Message
}

// NewSerialGateway opens the serial port, initializes the modem in text
// mode, and starts message reception.
func NewSerialGateway(port string, baud int) (*SerialGateway, error) {
	dev, err := serial.New(serial.WithPort(port), serial.WithBaud(baud))
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", port, err)
	}

	g := gsm.New(at.New(dev, at.WithTimeout(5*time.Second)), gsm.WithTextMode)
	if err := g.Init(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("init modem: %w", err)
	}

	s := &SerialGateway{g: g, dev: dev}
	if err := g.StartMessageRx(s.onMessage, s.onRxError); err != nil {
		dev.Close()
		return nil, fmt.Errorf("start message rx: %w", err)
	}
	return s, nil
}

func (s *SerialGateway) onMessage(msg gsm.Message) {
	s.mu.Lock()
	s.inbox = append(s.inbox, Message{Number: msg.Number, Text: msg.Message})
	s.mu.Unlock()
}

func (s *SerialGateway) onRxError(err error) {
	// Receive errors surface here rather than through Drain; the affected
	// tick simply sees an empty inbox.
	log.Printf("modem: receive error: %v", err)
}

// Send delivers one SMS in text mode.
func (s *SerialGateway) Send(number, text string) error {
	if _, err := s.g.SendShortMessage(number, text); err != nil {
		return fmt.Errorf("send sms to %s: %w", number, err)
	}
	return nil
}

// Drain returns all messages received since the previous call.
func (s *SerialGateway) Drain() ([]Message, error) {
	s.mu.Lock()
	msgs := s.inbox
	s.inbox = nil
	s.mu.Unlock()
	return msgs, nil
}

// SignalStrength queries AT+CSQ and returns the RSSI.
func (s *SerialGateway) SignalStrength() (int, error) {
	lines, err := s.g.Command("+CSQ")
	if err != nil {
		return 0, fmt.Errorf("query signal strength: %w", err)
	}
	for _, line := range lines {
		var rssi, ber int
		if _, err := fmt.Sscanf(line, "+CSQ: %d,%d", &rssi, &ber); err == nil {
			return rssi, nil
		}
	}
	return 0, fmt.Errorf("unexpected +CSQ response %q", lines)
}

// Close stops message reception and closes the serial port.
func (s *SerialGateway) Close() error {
	s.g.StopMessageRx()
	if err := s.dev.Close(); err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}
