package chipset

import (
	"fmt"
	"sort"
)

// descriptor binds an address range to a live device instance. It is
// immutable after Build.
type descriptor struct {
	name     string
	category DeviceCategory
	base     GuestPhysAddr
	length   uint64
	dev      MMIODevice

	stats DeviceStats
}

func (d *descriptor) rangeDesc() RangeDesc {
	return RangeDesc{Name: d.name, Base: d.base, Length: d.length}
}

// end returns the first address past the descriptor's range.
func (d *descriptor) end() GuestPhysAddr {
	return d.base + GuestPhysAddr(d.length)
}

func (d *descriptor) contains(addr GuestPhysAddr) bool {
	return addr >= d.base && addr < d.end()
}

// Builder registers device descriptors and validates the layout before
// creating a Dispatcher. A Builder is not safe for concurrent use; it
// exists only during device-layer construction.
type Builder struct {
	byName      map[string]*descriptor
	descriptors []*descriptor
}

// NewBuilder returns an empty Builder instance.
func NewBuilder() *Builder {
	return &Builder{
		byName: make(map[string]*descriptor),
	}
}

// RegisterDevice adds a device and validates its address range against
// every range registered so far. On error nothing is registered.
func (b *Builder) RegisterDevice(name string, category DeviceCategory, dev MMIODevice) error {
	if b == nil {
		return fmt.Errorf("chipset: builder is nil")
	}
	if name == "" {
		return fmt.Errorf("chipset: device name is empty")
	}
	if dev == nil {
		return fmt.Errorf("chipset: device %q is nil", name)
	}
	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("chipset: device %q already registered", name)
	}

	base, length := dev.AddressRange()
	rd := RangeDesc{Name: name, Base: base, Length: length}
	if length == 0 {
		return &InvalidRangeError{Range: rd, Reason: "zero length"}
	}
	if uint64(base)+length < uint64(base) {
		return &InvalidRangeError{Range: rd, Reason: "range end overflows"}
	}
	for _, existing := range b.descriptors {
		if rangesOverlap(base, length, existing.base, existing.length) {
			return &OverlapError{A: rd, B: existing.rangeDesc()}
		}
	}

	desc := &descriptor{
		name:     name,
		category: category,
		base:     base,
		length:   length,
		dev:      dev,
	}
	b.byName[name] = desc
	b.descriptors = append(b.descriptors, desc)
	return nil
}

// Build finalizes the layout and returns the constructed Dispatcher.
// The Builder must not be reused afterwards.
func (b *Builder) Build() (*Dispatcher, error) {
	if b == nil {
		return nil, fmt.Errorf("chipset: builder is nil")
	}

	sorted := make([]*descriptor, len(b.descriptors))
	copy(sorted, b.descriptors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].base < sorted[j].base
	})

	// Registration already rejected overlaps; a violation here means the
	// builder's own bookkeeping is broken.
	for i := 1; i < len(sorted); i++ {
		if sorted[i].base < sorted[i-1].end() {
			return nil, fmt.Errorf("chipset: internal error: sorted ranges %s and %s overlap",
				sorted[i-1].rangeDesc(), sorted[i].rangeDesc())
		}
	}

	byName := make(map[string]*descriptor, len(b.byName))
	for name, desc := range b.byName {
		byName[name] = desc
	}

	return &Dispatcher{
		sorted: sorted,
		byName: byName,
	}, nil
}

func rangesOverlap(baseA GuestPhysAddr, lengthA uint64, baseB GuestPhysAddr, lengthB uint64) bool {
	endA := uint64(baseA) + lengthA
	endB := uint64(baseB) + lengthB
	return uint64(baseA) < endB && uint64(baseB) < endA
}
