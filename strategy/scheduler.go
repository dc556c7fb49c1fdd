package strategy

import (
	"fmt"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// timeSyncOffset shifts the quotient boundary one second back so a
// tick landing exactly on a period edge counts into the new period.
const timeSyncOffset = 1

// Scheduler decides when a periodic bucket crosses its boundary. Each
// bucket fires once per period; the very first check always fires so
// strategies run immediately at startup.
type Scheduler struct {
	now  func() time.Time
	prev map[string]int64
}

func NewScheduler() *Scheduler {
	return &Scheduler{now: time.Now, prev: make(map[string]int64)}
}

// Check reports whether bucket crossed into a new period since the
// last call.
func (s *Scheduler) Check(bucket, period string) (bool, error) {
	duration, err := str2duration.ParseDuration(period)
	if err != nil {
		return false, fmt.Errorf("bucket %s: bad period %q: %w", bucket, period, err)
	}
	seconds := int64(duration / time.Second)
	if seconds <= 0 {
		return false, fmt.Errorf("bucket %s: period %q below one second", bucket, period)
	}

	quotient := (s.now().Unix() - timeSyncOffset) / seconds
	if prev, seen := s.prev[bucket]; seen && prev == quotient {
		return false, nil
	}
	s.prev[bucket] = quotient
	return true, nil
}
