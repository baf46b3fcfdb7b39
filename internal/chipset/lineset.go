package chipset

import "sync"

// LineSet hands out interrupt line handles and forwards their level
// changes to a single InterruptSink. Devices hold a LineInterrupt and
// never talk to the sink directly, so the delivery mechanism can be
// swapped without touching device code.
type LineSet struct {
	mu sync.Mutex

	sink  InterruptSink
	lines map[uint32]*lineState
}

type lineState struct {
	level bool
}

type noopInterruptSink struct{}

func (noopInterruptSink) SetIRQ(uint32, bool) {}

// NewLineSet builds a LineSet that forwards assertions to the provided
// sink. A nil sink drops all signals.
func NewLineSet(sink InterruptSink) *LineSet {
	if sink == nil {
		sink = noopInterruptSink{}
	}
	return &LineSet{
		sink:  sink,
		lines: make(map[uint32]*lineState),
	}
}

// AllocateLine returns a LineInterrupt handle for the given line number.
// Multiple calls for the same line share the underlying level state.
func (l *LineSet) AllocateLine(line uint32) LineInterrupt {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.lines[line]; !ok {
		l.lines[line] = &lineState{}
	}
	return &lineHandle{owner: l, line: line}
}

// Level reports the current level of the given line.
func (l *LineSet) Level(line uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if state, ok := l.lines[line]; ok {
		return state.level
	}
	return false
}

func (l *LineSet) setLevel(line uint32, level bool) {
	l.mu.Lock()
	state, ok := l.lines[line]
	if !ok {
		state = &lineState{}
		l.lines[line] = state
	}
	changed := state.level != level
	state.level = level
	sink := l.sink
	l.mu.Unlock()

	// Forward outside the lock; the sink may call back into devices.
	if changed {
		sink.SetIRQ(line, level)
	}
}

type lineHandle struct {
	owner *LineSet
	line  uint32
}

func (h *lineHandle) SetLevel(high bool) {
	h.owner.setLevel(h.line, high)
}

func (h *lineHandle) PulseInterrupt() {
	h.owner.setLevel(h.line, true)
	h.owner.setLevel(h.line, false)
}

var _ LineInterrupt = (*lineHandle)(nil)
