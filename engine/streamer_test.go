// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"
	"time"

	"github.com/ashlarengine/runtime/driver"
)

// TestStreamerLiveness exercises §8 "Streamer liveness": after
// Upload(r, ...), Update() and waiting for the transfer fence,
// IsUploaded(r) reports true.
func TestStreamerLiveness(t *testing.T) {
	d := newTestDevice(t)

	s, err := NewStreamer(d)
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Destroy()

	h, err := d.CreateBuffer(64, false, driver.UShaderRead)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	if s.IsUploaded(h) {
		t.Fatal("IsUploaded: expected false before any Upload")
	}

	data := make([]byte, 64)
	if err := s.UploadBuffer(h, data); err != nil {
		t.Fatalf("UploadBuffer: %v", err)
	}
	if s.IsUploaded(h) {
		t.Fatal("IsUploaded: expected false before Update")
	}

	if err := s.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !s.IsUploaded(h) {
		if time.Now().After(deadline) {
			t.Fatal("IsUploaded never became true after Update committed the transfer")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestStreamerUpdateWithNoPendingUploadsIsNoOp(t *testing.T) {
	d := newTestDevice(t)
	s, err := NewStreamer(d)
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Destroy()

	if err := s.Update(); err != nil {
		t.Fatalf("Update with nothing pending: %v", err)
	}
}

func TestStreamerStagingAreaLimitIsRefusedNotFatal(t *testing.T) {
	saved := cfg
	small := cfg
	small.StagingAreaSize = 1024
	small.MaxStagingArea = 2
	Configure(&small)
	defer Configure(&saved)

	d := newTestDevice(t)
	s, err := NewStreamer(d)
	if err != nil {
		t.Fatalf("NewStreamer: %v", err)
	}
	defer s.Destroy()

	// Exhaust every staging area (one already exists from NewStreamer)
	// without ever calling Update to reclaim them.
	var handles []Handle[bufferRes]
	for i := 0; i < cfg.MaxStagingArea; i++ {
		h, err := d.CreateBuffer(cfg.StagingAreaSize, false, driver.UShaderRead)
		if err != nil {
			t.Fatalf("CreateBuffer: %v", err)
		}
		handles = append(handles, h)
		data := make([]byte, cfg.StagingAreaSize)
		if err := s.UploadBuffer(h, data); err != nil {
			t.Fatalf("UploadBuffer #%d: unexpected error before exhaustion: %v", i, err)
		}
	}

	h, err := d.CreateBuffer(64, false, driver.UShaderRead)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	if err := s.UploadBuffer(h, make([]byte, 64)); err == nil {
		t.Error("UploadBuffer: expected an error once every staging area is in use, got nil")
	}
}
