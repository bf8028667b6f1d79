package gate

import (
	"sync"

	"github.com/ashureev/preppal/internal/domain"
)

// CadenceDecision is the tracker's verdict for one gated visit.
type CadenceDecision struct {
	Trigger       bool
	QuestionCount int
}

// CadenceTracker counts gated visits between challenges. The count lives
// only for the life of the process; a restart starts counting fresh.
//
// The counter resets only when a challenge triggers, so changing intensity
// mid-session applies the new threshold to the count already accumulated.
type CadenceTracker struct {
	mu    sync.Mutex
	count int
}

// NewCadenceTracker creates a tracker with a zero count.
func NewCadenceTracker() *CadenceTracker {
	return &CadenceTracker{}
}

// ShouldChallenge records one visit at the given intensity and reports
// whether it must trigger a challenge.
func (c *CadenceTracker) ShouldChallenge(intensity domain.Intensity) CadenceDecision {
	intensity = intensity.OrDefault()
	if intensity == domain.IntensityIntense {
		return CadenceDecision{Trigger: true, QuestionCount: 2}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.count++
	if c.count >= intensity.Threshold() {
		c.count = 0
		return CadenceDecision{Trigger: true, QuestionCount: 1}
	}
	return CadenceDecision{Trigger: false, QuestionCount: 1}
}

// Reset zeroes the visit count.
func (c *CadenceTracker) Reset() {
	c.mu.Lock()
	c.count = 0
	c.mu.Unlock()
}

// Count returns the current visit count.
func (c *CadenceTracker) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
