package engine

import (
	"sync"
	"time"
)

// healthState records the latest renderer self-check.
type healthState struct {
	mu        sync.RWMutex
	lastCheck time.Time
	lastErr   error
}

func (h *healthState) record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCheck = time.Now()
	h.lastErr = err
}

func (h *healthState) get() (time.Time, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastCheck, h.lastErr
}
