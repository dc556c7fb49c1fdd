package exchange

import (
	"time"

	"github.com/jpillora/backoff"

	"pivotbot/tools/log"
)

const (
	retryAttempts  = 5
	retryPause     = 500 * time.Millisecond
	rateLimitPause = 60 * time.Second
)

// Retrier mediates every adapter call: transient network failures are
// retried a bounded number of times, rate limits pause the caller, and
// everything else surfaces immediately with its classification.
type Retrier struct {
	attempts  int
	pause     *backoff.Backoff
	ratePause time.Duration
	sleep     func(time.Duration)
}

// NewRetrier returns a Retrier with the default policy.
func NewRetrier() *Retrier {
	return &Retrier{
		attempts: retryAttempts,
		pause: &backoff.Backoff{
			Min:    retryPause,
			Max:    retryPause,
			Factor: 1,
		},
		ratePause: rateLimitPause,
		sleep:     time.Sleep,
	}
}

// Do invokes fn, classifying failures per the taxonomy. Network-class
// failures retry up to the attempt budget with a fixed pause between
// tries; a rate-limit failure sleeps out the penalty window and then
// returns so the strategy tick can give up until its next period.
func (r *Retrier) Do(op, pair string, fn func() error) error {
	r.pause.Reset()

	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		switch Classify(err) {
		case KindNetwork:
			log.Warnf("%s %s: transient failure (attempt %d/%d): %v",
				op, pair, attempt+1, r.attempts, err)
			r.sleep(r.pause.Duration())
			continue
		case KindRateLimit:
			log.Warnf("%s %s: rate limited, pausing %s", op, pair, r.ratePause)
			r.sleep(r.ratePause)
			return classified(op, pair, err)
		default:
			return classified(op, pair, err)
		}
	}
	return classified(op, pair, err)
}
