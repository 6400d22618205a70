package mqtt

import "log"

// queuedMsg stores a serialized MQTT message for replay after reconnection.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// replayQueue holds messages published while the broker connection is down.
// Bounded; the oldest message is dropped on overflow. Not safe for
// concurrent use; the caller must synchronize.
type replayQueue struct {
	msgs     []queuedMsg
	capacity int
	overflow bool
}

func newReplayQueue(capacity int) *replayQueue {
	return &replayQueue{capacity: capacity}
}

func (q *replayQueue) push(msg queuedMsg) {
	if len(q.msgs) == q.capacity {
		if !q.overflow {
			log.Printf("mqtt: replay queue full (%d messages), dropping oldest", q.capacity)
			q.overflow = true
		}
		copy(q.msgs, q.msgs[1:])
		q.msgs[len(q.msgs)-1] = msg
		return
	}
	q.msgs = append(q.msgs, msg)
}

// drainAll returns the queued messages in order and empties the queue.
func (q *replayQueue) drainAll() []queuedMsg {
	if len(q.msgs) == 0 {
		return nil
	}
	out := q.msgs
	q.msgs = nil
	q.overflow = false
	return out
}

func (q *replayQueue) len() int {
	return len(q.msgs)
}
