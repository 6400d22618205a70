package modem

import (
	"fmt"
	"log"
	"time"
)

// RetryPolicy controls how Dial retries modem bring-up. The zero value
// retries forever with no delay, matching the watchdog's historical
// behavior; a deployment can bound it instead.
type RetryPolicy struct {
	// MaxAttempts limits connection attempts. 0 means retry forever.
	MaxAttempts int

	// Delay is slept between attempts.
	Delay time.Duration
}

// Dial calls open until it succeeds or the policy is exhausted. Every
// failure is logged; the daemon has no fallback transport, so by default it
// keeps trying until the modem appears.
func Dial(policy RetryPolicy, open func() (Gateway, error)) (Gateway, error) {
	for attempt := 1; ; attempt++ {
		gw, err := open()
		if err == nil {
			return gw, nil
		}
		log.Printf("modem: connect attempt %d failed: %v", attempt, err)
		if policy.MaxAttempts > 0 && attempt >= policy.MaxAttempts {
			return nil, fmt.Errorf("modem: giving up after %d attempts: %w", attempt, err)
		}
		if policy.Delay > 0 {
			time.Sleep(policy.Delay)
		}
	}
}
