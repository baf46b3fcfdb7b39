package chipset

import "sync/atomic"

// DeviceStats counts accesses dispatched to a single device. The
// counters are updated with atomics so the dispatch path stays
// lock-free.
type DeviceStats struct {
	reads  atomic.Uint64
	writes atomic.Uint64
	errors atomic.Uint64
}

func (s *DeviceStats) recordRead()  { s.reads.Add(1) }
func (s *DeviceStats) recordWrite() { s.writes.Add(1) }
func (s *DeviceStats) recordError() { s.errors.Add(1) }

func (s *DeviceStats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Reads:  s.reads.Load(),
		Writes: s.writes.Load(),
		Errors: s.errors.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of a device's access counters.
type StatsSnapshot struct {
	Reads  uint64
	Writes uint64
	Errors uint64
}

// Total returns the number of successful operations.
func (s StatsSnapshot) Total() uint64 {
	return s.Reads + s.Writes
}
