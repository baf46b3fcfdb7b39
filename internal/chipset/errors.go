package chipset

import (
	"errors"
	"fmt"
)

// ErrUnsupportedWidth is returned by a device when an access width is
// outside its supported set.
var ErrUnsupportedWidth = errors.New("unsupported access width")

// RangeDesc names a device's address range for error reporting.
type RangeDesc struct {
	Name   string
	Base   GuestPhysAddr
	Length uint64
}

func (r RangeDesc) String() string {
	return fmt.Sprintf("%s [0x%x-0x%x)", r.Name, uint64(r.Base), uint64(r.Base)+r.Length)
}

// OverlapError is a construction-time failure: two device address
// ranges intersect.
type OverlapError struct {
	A, B RangeDesc
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("chipset: MMIO range %s overlaps %s", e.A, e.B)
}

// InvalidRangeError is a construction-time failure: a device's address
// range or a category-specific parameter is unusable.
type InvalidRangeError struct {
	Range  RangeDesc
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("chipset: invalid range %s: %s", e.Range, e.Reason)
}

// DuplicateSingletonError is a construction-time failure: a second
// device of a category that permits at most one instance.
type DuplicateSingletonError struct {
	Category DeviceCategory
}

func (e *DuplicateSingletonError) Error() string {
	return fmt.Sprintf("chipset: category %q permits only one device", e.Category)
}

// UnmappedAddressError is a per-call dispatch failure: no device owns
// the address. The caller decides whether this becomes a guest fault.
type UnmappedAddressError struct {
	Addr GuestPhysAddr
}

func (e *UnmappedAddressError) Error() string {
	return fmt.Sprintf("chipset: no device mapped at 0x%016x", uint64(e.Addr))
}

// OutOfRangeError is a per-call dispatch failure: the address lies
// inside a device's range but addr+width crosses its end.
type OutOfRangeError struct {
	Addr   GuestPhysAddr
	Width  AccessWidth
	Device RangeDesc
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("chipset: %d-byte access at 0x%x crosses end of %s",
		e.Width, uint64(e.Addr), e.Device)
}

// DeviceFault wraps an error returned by a device handler, preserving
// the faulting guest physical address for diagnostics.
type DeviceFault struct {
	Addr   GuestPhysAddr
	Device string
	Err    error
}

func (e *DeviceFault) Error() string {
	return fmt.Sprintf("chipset: device %q at 0x%x: %v", e.Device, uint64(e.Addr), e.Err)
}

func (e *DeviceFault) Unwrap() error { return e.Err }
