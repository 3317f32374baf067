// Package testutils provides deterministic generators and fakes for gemchat testing.
// The generators keep production formats (UUIDs, wall-clock times) so that tests
// exercise the same code paths as real runs.
package testutils

import (
	"fmt"
	"sync"
	"time"
)

// BaseTime is the first instant handed out by a Clock.
var BaseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// IDSequence hands out UUID-formatted ids in a fixed order:
// 00000001-0000-4000-8000-000000000001, 00000002-0000-4000-8000-000000000002, ...
type IDSequence struct {
	mu      sync.Mutex
	counter uint64
}

// NewIDSequence creates a sequence starting at 1.
func NewIDSequence() *IDSequence {
	return &IDSequence{}
}

// Next returns the next id. It is safe for concurrent use.
func (s *IDSequence) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	// Version nibble 4 and variant 8 keep the value a valid v4 UUID.
	return fmt.Sprintf("%08x-0000-4000-8000-%012x", s.counter, s.counter)
}

// Clock returns incrementing times, one Step apart, starting at BaseTime.
type Clock struct {
	mu      sync.Mutex
	Step    time.Duration
	counter int64
}

// NewClock creates a clock that advances one second per call.
func NewClock() *Clock {
	return &Clock{Step: time.Second}
}

// Now returns the next instant. The first call returns BaseTime.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := BaseTime.Add(time.Duration(c.counter) * c.Step)
	c.counter++
	return t
}
