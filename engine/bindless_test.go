// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import "testing"

func TestBindlessSetReservesNullSlot(t *testing.T) {
	s, err := NewBindlessSet(testGPU(t), BindlessStorageBuffer, 16)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	defer s.Destroy()

	for i := 0; i < 15; i++ { // capacity 16 with slot 0 reserved leaves 15 bindable slots
		idx := s.Bind(BindlessDescriptor{Size: 4})
		if idx == BindlessNullSlot {
			t.Fatalf("Bind #%d returned the reserved null slot", i)
		}
	}
}

// TestBindlessIdempotence exercises §8 "Bindless idempotence": a
// slot Unbind-then-Bind within the same batch must end up bound to
// the latest descriptor, not reset to the null sentinel by the
// stale pending unbind.
func TestBindlessIdempotence(t *testing.T) {
	s, err := NewBindlessSet(testGPU(t), BindlessStorageBuffer, 16)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	defer s.Destroy()

	idx := s.Bind(BindlessDescriptor{Size: 4})
	s.Update()

	s.Unbind(idx)
	rebound := s.Bind(BindlessDescriptor{Size: 8})
	if rebound != idx {
		t.Fatalf("Bind after Unbind in the same batch reused slot %d, want the freed slot %d", rebound, idx)
	}
	s.Update() // must not be a no-op; bound descriptor must win over the unbind

	if s.free.IsSet(int(idx)) == false {
		t.Errorf("slot %d expected allocated after rebind", idx)
	}
	if len(s.pendBind) != 0 || len(s.pendUnbind) != 0 {
		t.Errorf("Update did not clear pending lists: bind=%v unbind=%v", s.pendBind, s.pendUnbind)
	}
}

func TestBindlessUnbindUnallocatedIsIgnored(t *testing.T) {
	s, err := NewBindlessSet(testGPU(t), BindlessStorageBuffer, 8)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	defer s.Destroy()

	s.Unbind(5) // never bound; must be logged and ignored, not panic
	if len(s.pendUnbind) != 0 {
		t.Errorf("pendUnbind = %v, want empty after ignoring an invalid unbind", s.pendUnbind)
	}
}

func TestBindlessUnbindNullSlotIsIgnored(t *testing.T) {
	s, err := NewBindlessSet(testGPU(t), BindlessStorageBuffer, 8)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	defer s.Destroy()

	s.Unbind(BindlessNullSlot)
	if len(s.pendUnbind) != 0 {
		t.Errorf("pendUnbind = %v, want empty; the null slot may never be unbound", s.pendUnbind)
	}
}

func TestBindlessExhaustionReturnsNullSlot(t *testing.T) {
	// Capacity 3 with slot 0 reserved leaves exactly 2 bindable slots.
	s, err := NewBindlessSet(testGPU(t), BindlessStorageBuffer, 3)
	if err != nil {
		t.Fatalf("NewBindlessSet: %v", err)
	}
	defer s.Destroy()

	if idx := s.Bind(BindlessDescriptor{}); idx == BindlessNullSlot {
		t.Fatal("first Bind: unexpected exhaustion")
	}
	if idx := s.Bind(BindlessDescriptor{}); idx == BindlessNullSlot {
		t.Fatal("second Bind: unexpected exhaustion")
	}
	if idx := s.Bind(BindlessDescriptor{}); idx != BindlessNullSlot {
		t.Errorf("Bind past capacity = %d, want BindlessNullSlot", idx)
	}
}
