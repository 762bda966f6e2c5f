package state

import (
	"sync"
	"time"
)

// Snapshot is a copy of an agent's counters. Nothing here outlives the
// process.
type Snapshot struct {
	Cycles        uint64
	CycleErrors   uint64
	Submitted     uint64
	Rejected      uint64
	Failed        uint64
	Fills         uint64
	LastError     string
	LastErrorTime time.Time
	LastOrderTime time.Time
	StartedAt     time.Time
}

type Stats struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func NewStats(now time.Time) *Stats {
	return &Stats{snapshot: Snapshot{StartedAt: now}}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// CycleDone counts a finished cycle; a non-nil err also marks it failed.
func (s *Stats) CycleDone(err error, now time.Time) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Cycles++
	if err != nil {
		s.snapshot.CycleErrors++
		s.recordError(err, now)
	}
	return s.snapshot.Cycles
}

func (s *Stats) OrderSubmitted(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Submitted++
	s.snapshot.LastOrderTime = now
}

func (s *Stats) OrderRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Rejected++
}

func (s *Stats) OrderFailed(err error, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Failed++
	s.recordError(err, now)
}

func (s *Stats) FillSeen() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot.Fills++
}

func (s *Stats) recordError(err error, now time.Time) {
	s.snapshot.LastError = err.Error()
	s.snapshot.LastErrorTime = now
}
