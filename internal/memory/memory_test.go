package memory

import (
	"bytes"
	"errors"
	"testing"
)

func TestAddressPacking(t *testing.T) {
	a := Address{Alloc: 7, Offset: 12}
	if got := DecodeAddress(a.Encode()); got != a {
		t.Fatalf("round trip = %v", got)
	}
	if got := AddressFromUint(a.Uint()); got != a {
		t.Fatalf("uint round trip = %v", got)
	}
	if got := a.Add(4); got.Alloc != 7 || got.Offset != 16 {
		t.Fatalf("Add = %v", got)
	}
}

func TestReadWrite(t *testing.T) {
	m := New()
	addr := m.Allocate(8, 8)
	if err := m.Write(addr.Add(2), []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := m.Read(addr, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0, 0, 1, 2, 3, 0, 0, 0}) {
		t.Fatalf("read = %v", got)
	}
}

func TestOutOfBounds(t *testing.T) {
	m := New()
	addr := m.Allocate(4, 4)

	var oob *OutOfBoundsError
	if _, err := m.Read(addr, 8); !errors.As(err, &oob) {
		t.Fatalf("oversized read: %v", err)
	}
	if err := m.Write(addr.Add(3), []byte{1, 2}); !errors.As(err, &oob) {
		t.Fatalf("straddling write: %v", err)
	}
	// The raw band is never backed.
	if _, err := m.Read(Address{}, 1); !errors.As(err, &oob) {
		t.Fatalf("null read: %v", err)
	}
	if _, err := m.Read(Address{Alloc: 1}, 1); !errors.As(err, &oob) {
		t.Fatalf("raw band read: %v", err)
	}
}

func TestAllocationIDsAboveRawBand(t *testing.T) {
	a := New().Allocate(1, 1)
	if a.Alloc < RawAllocBase {
		t.Fatalf("allocation id %d falls inside the raw band", a.Alloc)
	}
}

func TestUniqueAllocationIDs(t *testing.T) {
	m1, m2 := New(), New()
	a1 := m1.Allocate(1, 1)
	a2 := m2.Allocate(1, 1)
	if a1.Alloc == a2.Alloc {
		t.Fatal("allocation ids must be process-unique across memories")
	}
}

func TestSnapshotTransfer(t *testing.T) {
	src := New()
	addr := src.AllocateBytes([]byte{9, 8, 7})
	snap := src.Capture(map[AllocID]bool{addr.Alloc: true})
	if snap.Empty() {
		t.Fatal("snapshot must carry the allocation")
	}

	dst := New()
	dst.Import(snap)
	got, err := dst.Read(addr, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{9, 8, 7}) {
		t.Fatalf("imported bytes = %v", got)
	}

	// The import owns its buffer; writes do not leak back to the snapshot.
	if err := dst.Write(addr, []byte{0}); err != nil {
		t.Fatal(err)
	}
	if snap.Allocs[addr.Alloc].Bytes[0] != 9 {
		t.Fatal("import must copy, not alias")
	}
}
