package worksession

import (
	"fmt"
	"sync"
	"time"
)

// ClampSeconds truncates a duration to whole seconds, never below zero.
// Negative durations only appear with clock skew between hosts.
func ClampSeconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// FormatClock renders seconds as HH:MM:SS. Hours are not wrapped at 24.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// Counter is the locally interpolated work clock. A fetch resets it to the
// server value; while running each Tick adds one second.
type Counter struct {
	mu      sync.Mutex
	seconds int64
	running bool
}

// Reset overwrites the counter with a server-reported value.
func (c *Counter) Reset(seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	c.seconds = seconds
	c.mu.Unlock()
}

// SetRunning starts or freezes local interpolation.
func (c *Counter) SetRunning(running bool) {
	c.mu.Lock()
	c.running = running
	c.mu.Unlock()
}

// Tick advances the counter by one second if it is running and reports
// whether it changed.
func (c *Counter) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.seconds++
	return true
}

func (c *Counter) Seconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seconds
}

func (c *Counter) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Counter) String() string {
	return FormatClock(c.Seconds())
}
