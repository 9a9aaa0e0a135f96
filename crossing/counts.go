package crossing

import "sync"

// CountsSnapshot is point-in-time copy of Counts
type CountsSnapshot struct {
	Entered int `json:"entered"`
	Exited  int `json:"exited"`
	// Occupancy is never negative: Entered - Exited + UnmatchedExits
	Occupancy int `json:"occupancy"`
	// Exits observed while occupancy was already zero (tracker misses, people present before start)
	UnmatchedExits int `json:"unmatched_exits"`
}

// Counts holds cumulative entry/exit counters and running occupancy.
// Single writer (frame pipeline), many readers.
type Counts struct {
	mu             sync.RWMutex
	entered        int
	exited         int
	occupancy      int
	unmatchedExits int
}

// NewCounts creates zero counters
func NewCounts() *Counts {
	return &Counts{}
}

// Apply registers crossing direction and returns updated counters
func (counts *Counts) Apply(direction Direction) CountsSnapshot {
	counts.mu.Lock()
	defer counts.mu.Unlock()
	switch direction {
	case DirectionEntry:
		counts.entered++
		counts.occupancy++
	case DirectionExit:
		counts.exited++
		if counts.occupancy > 0 {
			counts.occupancy--
		} else {
			counts.unmatchedExits++
		}
	}
	return counts.snapshot()
}

// Snapshot returns current counters
func (counts *Counts) Snapshot() CountsSnapshot {
	counts.mu.RLock()
	defer counts.mu.RUnlock()
	return counts.snapshot()
}

// Occupancy returns current occupancy
func (counts *Counts) Occupancy() int {
	counts.mu.RLock()
	defer counts.mu.RUnlock()
	return counts.occupancy
}

// Reset zeroes every counter
func (counts *Counts) Reset() {
	counts.mu.Lock()
	defer counts.mu.Unlock()
	counts.entered = 0
	counts.exited = 0
	counts.occupancy = 0
	counts.unmatchedExits = 0
}

func (counts *Counts) snapshot() CountsSnapshot {
	return CountsSnapshot{
		Entered:        counts.entered,
		Exited:         counts.exited,
		Occupancy:      counts.occupancy,
		UnmatchedExits: counts.unmatchedExits,
	}
}
