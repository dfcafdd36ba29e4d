// Package clock implements the shared wrapping frame counter and the
// round-trip estimator used to keep it aligned with peers.
package clock

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// timestepsBase is the preferred counter period.
const timestepsBase = 128

// MaxTimesteps bounds the period so every frame fits the one-byte wire field.
const MaxTimesteps = 256

// Timesteps returns the counter period for framerate: the largest multiple
// of framerate not above 128. Frame rates above 128 count one second,
// capped at MaxTimesteps.
func Timesteps(framerate int) int {
	if framerate <= 0 {
		return timestepsBase
	}
	if framerate > timestepsBase {
		return min(framerate, MaxTimesteps)
	}
	return (timestepsBase / framerate) * framerate
}

// Delta returns the wraparound distance between a and b on a ring of length.
func Delta(a, b, length int) int {
	if length <= 0 {
		return 0
	}
	d1 := mod(a-b, length)
	d2 := mod(b-a, length)
	return min(d1, d2)
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}

// Clock is a frame counter in [0, Timesteps) advanced from wall time.
// Now is safe to call from any goroutine.
type Clock struct {
	framerate int
	timesteps int

	mu    sync.Mutex
	last  time.Time
	carry float64

	now atomic.Int32
}

// New returns a clock at frame 0 that starts measuring from start.
func New(framerate int, start time.Time) *Clock {
	if framerate <= 0 {
		framerate = 60
	}
	return &Clock{
		framerate: framerate,
		timesteps: Timesteps(framerate),
		last:      start,
	}
}

// Timesteps returns the counter period.
func (c *Clock) Timesteps() int { return c.timesteps }

// FrameRate returns the configured frame rate.
func (c *Clock) FrameRate() int { return c.framerate }

// Now returns the current frame.
func (c *Clock) Now() int { return int(c.now.Load()) }

// Tick advances the counter by the frames elapsed since the previous tick.
// Fractional frames carry over to the next tick.
func (c *Clock) Tick(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now.Sub(c.last).Seconds()
	c.last = now
	if elapsed < 0 {
		elapsed = 0
	}

	c.carry += elapsed * float64(c.framerate)
	whole := int(c.carry)
	c.carry -= float64(whole)

	next := mod(int(c.now.Load())+whole, c.timesteps)
	c.now.Store(int32(next))
	return next
}

// Reset returns the counter to frame 0 and restarts measuring from now,
// dropping any fractional carry.
func (c *Clock) Reset(now time.Time) {
	c.mu.Lock()
	c.last = now
	c.carry = 0
	c.now.Store(0)
	c.mu.Unlock()
}

// Set jumps the counter to frame (taken modulo the period).
func (c *Clock) Set(frame int) {
	c.mu.Lock()
	c.now.Store(int32(mod(frame, c.timesteps)))
	c.mu.Unlock()
}

// Correct aligns the counter with a peer's frame. The peer value is advanced
// by half the round trip; the jump only happens when the wraparound distance
// exceeds threshold frames. It reports whether the counter moved.
func (c *Clock) Correct(peer int, rtt float64, threshold int) bool {
	target := mod(peer+int(rtt/2+0.5), c.timesteps)

	c.mu.Lock()
	defer c.mu.Unlock()
	if Delta(int(c.now.Load()), target, c.timesteps) <= threshold {
		return false
	}
	c.now.Store(int32(target))
	return true
}
