package analytics

import "sync"

// Counters tracks the two event-driven usage numbers. Session and contact
// totals are deliberately not stored here: they are recomputed from the live
// collections at snapshot time so they can never drift.
type Counters struct {
	mu                    sync.Mutex
	totalMessages         int
	manualModeActivations int
}

type Snapshot struct {
	SessionCount          int
	ContactCount          int
	TotalMessages         int
	ManualModeActivations int
}

func New() *Counters {
	return &Counters{}
}

// Seed restores the event counters from state recovered at startup.
func (c *Counters) Seed(totalMessages, manualModeActivations int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalMessages = totalMessages
	c.manualModeActivations = manualModeActivations
}

func (c *Counters) AddMessage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalMessages++
}

func (c *Counters) AddManualActivation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manualModeActivations++
}

func (c *Counters) Snapshot(sessionCount, contactCount int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionCount:          sessionCount,
		ContactCount:          contactCount,
		TotalMessages:         c.totalMessages,
		ManualModeActivations: c.manualModeActivations,
	}
}
