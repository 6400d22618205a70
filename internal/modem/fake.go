package modem

// FakeGateway is a test double that scripts the remote side of the SMS
// conversation and records everything sent.
type FakeGateway struct {
	// Inbox contains scripted batches; each Drain call consumes one batch.
	// Once exhausted, Drain returns nothing (the quiet sensor case).
	Inbox [][]Message

	// Sent records all messages passed to Send, in order.
	Sent []Message

	// SendError, if set, is returned by every Send call.
	SendError error

	// SendErrors maps destination numbers to errors, for testing per-operator
	// failure isolation. Checked before SendError.
	SendErrors map[string]error

	// DrainError, if set, is returned by every Drain call.
	DrainError error

	// Signal is returned by SignalStrength.
	Signal int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeGateway creates a FakeGateway with the given scripted inbox batches.
func NewFakeGateway(batches ...[]Message) *FakeGateway {
	return &FakeGateway{Inbox: batches}
}

// Send records the message, or fails if scripted to.
func (f *FakeGateway) Send(number, text string) error {
	if err, ok := f.SendErrors[number]; ok {
		return err
	}
	if f.SendError != nil {
		return f.SendError
	}
	f.Sent = append(f.Sent, Message{Number: number, Text: text})
	return nil
}

// Drain consumes and returns the next scripted batch.
func (f *FakeGateway) Drain() ([]Message, error) {
	if f.DrainError != nil {
		return nil, f.DrainError
	}
	if len(f.Inbox) == 0 {
		return nil, nil
	}
	batch := f.Inbox[0]
	f.Inbox = f.Inbox[1:]
	return batch, nil
}

// Push appends a batch to the scripted inbox.
func (f *FakeGateway) Push(msgs ...Message) {
	f.Inbox = append(f.Inbox, msgs)
}

// SignalStrength returns the scripted signal value.
func (f *FakeGateway) SignalStrength() (int, error) {
	return f.Signal, nil
}

// Close marks the gateway as closed.
func (f *FakeGateway) Close() error {
	f.Closed = true
	return nil
}

// SentTo returns the bodies of all messages sent to the given number.
func (f *FakeGateway) SentTo(number string) []string {
	var texts []string
	for _, m := range f.Sent {
		if m.Number == number {
			texts = append(texts, m.Text)
		}
	}
	return texts
}
