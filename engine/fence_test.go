// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"
	"time"

	"github.com/ashlarengine/runtime/driver"
)

func TestFenceSignalIsMonotonic(t *testing.T) {
	f, err := NewFence(testGPU(t))
	if err != nil {
		t.Fatalf("NewFence: %v", err)
	}
	defer f.Destroy()

	f.Signal(5)
	f.Signal(3) // lower than already observed; must not regress
	if v := f.Value(); v != 5 {
		t.Errorf("Value() = %d, want 5", v)
	}
}

func TestFenceWaitUnblocksOnSignal(t *testing.T) {
	f, err := NewFence(testGPU(t))
	if err != nil {
		t.Fatalf("NewFence: %v", err)
	}
	defer f.Destroy()

	done := make(chan struct{})
	go func() {
		f.Wait(1)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Wait returned before any Signal")
	case <-time.After(20 * time.Millisecond):
	}

	f.Signal(1)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock within 1s of Signal")
	}
}

func TestFenceCommitDeliversSignal(t *testing.T) {
	gpu := testGPU(t)
	f, err := NewFence(gpu)
	if err != nil {
		t.Fatalf("NewFence: %v", err)
	}
	defer f.Destroy()

	cb, err := gpu.NewCmdBuffer(driver.Graphics)
	if err != nil {
		t.Fatalf("NewCmdBuffer: %v", err)
	}
	if err := cb.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := cb.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	if err := f.Commit(gpu, []driver.CmdBuffer{cb}, 1); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	done := make(chan struct{})
	go func() {
		f.Wait(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Fence never reached value 1 after Commit")
	}
}
