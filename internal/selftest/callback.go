package selftest

import "sync"

// Observer receives phase reports during self-test execution. The return
// value is examined by the runner only for the Corrupt phase: returning
// false there forces the unit's verdict to Fail regardless of its real
// result. Returns for every other phase are ignored.
//
// arg is the opaque value supplied at registration and is passed back on
// every report.
type Observer func(r PhaseReport, arg any) bool

// Callbacks is the process-wide observer slot. One observer is registered
// at a time; a later Set replaces the earlier one. The zero value is an
// empty slot and is ready to use.
type Callbacks struct {
	mu  sync.RWMutex
	fn  Observer
	arg any
}

// NewCallbacks returns an empty observer slot.
func NewCallbacks() *Callbacks {
	return &Callbacks{}
}

// Set installs the observer. Last write wins.
func (c *Callbacks) Set(fn Observer, arg any) {
	c.mu.Lock()
	c.fn = fn
	c.arg = arg
	c.mu.Unlock()
}

// Clear removes the observer. Subsequent reports are dropped and no
// corruption override is possible.
func (c *Callbacks) Clear() {
	c.mu.Lock()
	c.fn = nil
	c.arg = nil
	c.mu.Unlock()
}

// Registered reports whether an observer is currently installed.
func (c *Callbacks) Registered() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fn != nil
}

// report delivers one phase report to the registered observer and returns
// the observer's verdict. With no observer installed it returns true, so
// the Corrupt-phase override path cannot trigger.
//
// The slot performs no interpretation of the report. It is a pass-through;
// the runner decides what the return value means per phase.
func (c *Callbacks) report(r PhaseReport) bool {
	c.mu.RLock()
	fn, arg := c.fn, c.arg
	c.mu.RUnlock()

	if fn == nil {
		return true
	}
	return fn(r, arg)
}
