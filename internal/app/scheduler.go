package app

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dkeye/Quiz/internal/core"
)

// loopScheduler runs timer callbacks on the hub loop instead of the timer
// goroutine.
type loopScheduler struct {
	clock clock.Clock
	post  func(func()) bool
}

func (s *loopScheduler) AfterFunc(d time.Duration, fn func()) core.Timer {
	return s.clock.AfterFunc(d, func() {
		s.post(fn)
	})
}
