package chipset

import (
	"container/heap"
	"sync"
)

// PendingInterrupt is an interrupt waiting to be injected into a vCPU.
type PendingInterrupt struct {
	Line     uint32
	Priority uint8

	// seq orders interrupts of equal priority by arrival.
	seq uint64
}

// pendingHeap orders by priority descending, then arrival ascending.
type pendingHeap []PendingInterrupt

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)   { *h = append(*h, x.(PendingInterrupt)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// LineRoute describes where assertions of a line should be queued.
type LineRoute struct {
	CPU      int
	Priority uint8
}

// InterruptRouter queues interrupt assertions per vCPU so the VM entry
// loop can pop and inject them. It implements InterruptSink: a rising
// edge on a routed line enqueues one pending interrupt on the target
// vCPU. Unrouted lines go to vCPU 0 with default priority.
type InterruptRouter struct {
	mu sync.Mutex

	queues []pendingHeap
	routes map[uint32]LineRoute
	seq    uint64
}

// DefaultLinePriority is used for lines without an explicit route.
const DefaultLinePriority uint8 = 50

// NewInterruptRouter creates a router with one queue per vCPU.
func NewInterruptRouter(cpuCount int) *InterruptRouter {
	if cpuCount < 1 {
		cpuCount = 1
	}
	return &InterruptRouter{
		queues: make([]pendingHeap, cpuCount),
		routes: make(map[uint32]LineRoute),
	}
}

// SetRoute assigns a target vCPU and priority to a line. A CPU outside
// the configured range is clamped to vCPU 0.
func (r *InterruptRouter) SetRoute(line uint32, route LineRoute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if route.CPU < 0 || route.CPU >= len(r.queues) {
		route.CPU = 0
	}
	r.routes[line] = route
}

// SetIRQ implements InterruptSink. Only rising edges enqueue; level
// tracking and dedup happen in the LineSet.
func (r *InterruptRouter) SetIRQ(line uint32, level bool) {
	if !level {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	route, ok := r.routes[line]
	if !ok {
		route = LineRoute{CPU: 0, Priority: DefaultLinePriority}
	}
	r.seq++
	heap.Push(&r.queues[route.CPU], PendingInterrupt{
		Line:     line,
		Priority: route.Priority,
		seq:      r.seq,
	})
}

// PopPending removes and returns the highest-priority pending interrupt
// for the given vCPU. Called before VM entry.
func (r *InterruptRouter) PopPending(cpu int) (PendingInterrupt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cpu < 0 || cpu >= len(r.queues) || r.queues[cpu].Len() == 0 {
		return PendingInterrupt{}, false
	}
	return heap.Pop(&r.queues[cpu]).(PendingInterrupt), true
}

// PendingCount returns the number of queued interrupts for a vCPU.
func (r *InterruptRouter) PendingCount(cpu int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cpu < 0 || cpu >= len(r.queues) {
		return 0
	}
	return r.queues[cpu].Len()
}

// ClearAll drops every queued interrupt on every vCPU. Used on VM reset.
func (r *InterruptRouter) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.queues {
		r.queues[i] = r.queues[i][:0]
	}
}

var _ InterruptSink = (*InterruptRouter)(nil)
