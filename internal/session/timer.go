package session

import (
	"fmt"
	"sync"
	"time"
)

// Countdown decrements once per interval, continuing past zero into
// overtime, and fires onExpire exactly once when the remaining time
// crosses -graceSeconds. Stop is safe to call any number of times and
// from any goroutine, including from within a callback.
type Countdown struct {
	duration int
	grace    int
	interval time.Duration
	onTick   func(remaining int)
	onExpire func()

	stopOnce sync.Once
	stop     chan struct{}
}

func NewCountdown(durationSeconds, graceSeconds int, interval time.Duration, onTick func(int), onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		duration: durationSeconds,
		grace:    graceSeconds,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
		stop:     make(chan struct{}),
	}
}

func (c *Countdown) Start() {
	go c.run()
}

func (c *Countdown) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	remaining := c.duration
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			remaining--
			c.onTick(remaining)
			if remaining <= -c.grace {
				c.onExpire()
				return
			}
		}
	}
}

// Stop halts the countdown. It only signals the tick loop, so it is
// safe to call from inside a tick callback; a tick already in flight
// may still land and the owner must guard on its own phase.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// FormatClock renders seconds as M:SS, prefixed with "-" in overtime.
func FormatClock(seconds int) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%d:%02d", sign, seconds/60, seconds%60)
}
