package memory

import (
	"fmt"
	"sync/atomic"

	"github.com/cruxlang/crux/internal/typesystem"
)

// The synthetic address space backing every value that needs identity:
// locals, references, promoted literals. An address is an allocation id plus
// a byte offset packed into one pointer-sized word, so pointer values live in
// memory as ordinary 8-byte scalars and pointer arithmetic within an
// allocation is plain offset arithmetic.

// AllocID identifies one allocation. IDs are process-unique (allocated from a
// shared atomic counter), so snapshots promoted out of one request can be
// imported into another without relocating stored addresses.
type AllocID uint32

// RawAllocBase is the first id real allocations may carry. Ids below it form
// the raw band: addresses fabricated by integer-to-pointer casts of small
// integers (including null) land there, and the band is never backed, so
// such an address can be rejected without aliasing a live allocation.
const RawAllocBase AllocID = 1 << 16

var nextAllocID atomic.Uint32

// Allocation is one owned, growable byte buffer.
type Allocation struct {
	ID    AllocID
	Bytes []byte
	Align int
}

// Address is a location within an allocation.
type Address struct {
	Alloc  AllocID
	Offset uint32
}

// Encode packs the address into its in-memory 8-byte representation.
func (a Address) Encode() []byte {
	return typesystem.EncodeUint(uint64(a.Alloc)<<32|uint64(a.Offset), typesystem.PtrSize)
}

// Uint packs the address into one word, as stored in memory.
func (a Address) Uint() uint64 {
	return uint64(a.Alloc)<<32 | uint64(a.Offset)
}

// DecodeAddress unpacks an 8-byte pointer word.
func DecodeAddress(b []byte) Address {
	v := typesystem.DecodeUint(b)
	return Address{Alloc: AllocID(v >> 32), Offset: uint32(v)}
}

// AddressFromUint unpacks a pointer word.
func AddressFromUint(v uint64) Address {
	return Address{Alloc: AllocID(v >> 32), Offset: uint32(v)}
}

// Add offsets the address within its allocation.
func (a Address) Add(n int) Address {
	return Address{Alloc: a.Alloc, Offset: a.Offset + uint32(n)}
}

func (a Address) String() string {
	return fmt.Sprintf("a%d+%d", a.Alloc, a.Offset)
}

// OutOfBoundsError reports an access past the end of an allocation, or
// through a dangling or null address.
type OutOfBoundsError struct {
	Addr Address
	Len  int
	Size int // allocation size, -1 when the allocation does not exist
}

func (e *OutOfBoundsError) Error() string {
	if e.Size < 0 {
		return fmt.Sprintf("memory access through invalid address %s", e.Addr)
	}
	return fmt.Sprintf("memory access out of bounds: %d bytes at %s in allocation of %d bytes", e.Len, e.Addr, e.Size)
}

// Memory owns the allocations of one evaluation request. Nothing outlives
// the request except what Snapshot captures.
type Memory struct {
	allocs map[AllocID]*Allocation
}

// New creates an empty request-local memory.
func New() *Memory {
	return &Memory{allocs: make(map[AllocID]*Allocation)}
}

// Allocate reserves a zeroed allocation and returns its base address.
func (m *Memory) Allocate(size, align int) Address {
	if align < 1 {
		align = 1
	}
	id := RawAllocBase + AllocID(nextAllocID.Add(1))
	m.allocs[id] = &Allocation{ID: id, Bytes: make([]byte, size), Align: align}
	return Address{Alloc: id}
}

// AllocateBytes promotes a literal: the allocation lives for the whole
// request (and beyond, if the result references it).
func (m *Memory) AllocateBytes(b []byte) Address {
	addr := m.Allocate(len(b), 1)
	copy(m.allocs[addr.Alloc].Bytes, b)
	return addr
}

// AllocSize returns the size of an allocation, or -1 if it is unknown here.
func (m *Memory) AllocSize(id AllocID) int {
	a, ok := m.allocs[id]
	if !ok {
		return -1
	}
	return len(a.Bytes)
}

// Read copies n bytes out of memory.
func (m *Memory) Read(addr Address, n int) ([]byte, error) {
	a, ok := m.allocs[addr.Alloc]
	if !ok {
		return nil, &OutOfBoundsError{Addr: addr, Len: n, Size: -1}
	}
	end := int(addr.Offset) + n
	if end > len(a.Bytes) {
		return nil, &OutOfBoundsError{Addr: addr, Len: n, Size: len(a.Bytes)}
	}
	out := make([]byte, n)
	copy(out, a.Bytes[addr.Offset:end])
	return out, nil
}

// Write stores bytes into memory.
func (m *Memory) Write(addr Address, b []byte) error {
	a, ok := m.allocs[addr.Alloc]
	if !ok {
		return &OutOfBoundsError{Addr: addr, Len: len(b), Size: -1}
	}
	end := int(addr.Offset) + len(b)
	if end > len(a.Bytes) {
		return &OutOfBoundsError{Addr: addr, Len: len(b), Size: len(a.Bytes)}
	}
	copy(a.Bytes[addr.Offset:end], b)
	return nil
}

// Snapshot is the set of allocations a promoted value transitively
// references. Allocation ids stay stable across requests, so importing is a
// plain merge.
type Snapshot struct {
	Allocs map[AllocID]Allocation
}

// Empty reports whether the snapshot carries no memory, i.e. the value is a
// self-contained scalar.
func (s Snapshot) Empty() bool { return len(s.Allocs) == 0 }

// Capture copies the given allocations out of this memory.
func (m *Memory) Capture(ids map[AllocID]bool) Snapshot {
	s := Snapshot{Allocs: make(map[AllocID]Allocation, len(ids))}
	for id := range ids {
		a, ok := m.allocs[id]
		if !ok {
			continue
		}
		bytes := make([]byte, len(a.Bytes))
		copy(bytes, a.Bytes)
		s.Allocs[id] = Allocation{ID: id, Bytes: bytes, Align: a.Align}
	}
	return s
}

// Import merges a snapshot captured by an earlier request. Shared immutable
// data is copied on read, so the importer gets its own buffers.
func (m *Memory) Import(s Snapshot) {
	for id, a := range s.Allocs {
		if _, ok := m.allocs[id]; ok {
			continue
		}
		bytes := make([]byte, len(a.Bytes))
		copy(bytes, a.Bytes)
		m.allocs[id] = &Allocation{ID: id, Bytes: bytes, Align: a.Align}
	}
}
