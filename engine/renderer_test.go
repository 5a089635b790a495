// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"testing"
	"time"

	"github.com/ashlarengine/runtime/driver"
	"github.com/ashlarengine/runtime/wsi"
)

type fakeImageView struct{ destroyed bool }

func (v *fakeImageView) Destroy() { v.destroyed = true }

// fakeSwapchain counts Next/Present/Recreate calls so the
// frame-pipelining tests can assert on call counts without
// instrumenting the driver backend.
type fakeSwapchain struct {
	views               []driver.ImageView
	nextCalls           int
	presentCalls        int
	recreateCalls       int
	nextOutOfDate       bool
}

func (s *fakeSwapchain) Destroy()                 {}
func (s *fakeSwapchain) Views() []driver.ImageView { return s.views }
func (s *fakeSwapchain) Format() driver.PixelFmt   { return driver.BGRA8un }

func (s *fakeSwapchain) Next(cb driver.CmdBuffer) (int, bool, error) {
	s.nextCalls++
	outOfDate := s.nextOutOfDate
	s.nextOutOfDate = false
	return 0, outOfDate, nil
}

func (s *fakeSwapchain) Present(index int, cb driver.CmdBuffer) error {
	s.presentCalls++
	return nil
}

func (s *fakeSwapchain) Recreate() error {
	s.recreateCalls++
	return nil
}

type fakeWindow struct{ w, h int }

func (w *fakeWindow) Width() int     { return w.w }
func (w *fakeWindow) Height() int    { return w.h }
func (w *fakeWindow) Title() string  { return "test" }

// presenterGPU wraps a driver.GPU to additionally implement
// driver.Presenter, since testgpu's fake driver has no display to
// present to.
type presenterGPU struct {
	driver.GPU
	sc *fakeSwapchain
}

func (g *presenterGPU) NewSwapchain(win wsi.Window, imageCount int) (driver.Swapchain, error) {
	return g.sc, nil
}

func newTestRenderer(t *testing.T) (*Renderer, *fakeSwapchain) {
	t.Helper()
	sc := &fakeSwapchain{views: []driver.ImageView{&fakeImageView{}, &fakeImageView{}}}
	gpu := &presenterGPU{GPU: testGPU(t), sc: sc}

	d, err := NewDevice(gpu)
	if err != nil {
		t.Fatalf("NewDevice: %v", err)
	}
	surf, err := NewSurface(gpu, &fakeWindow{w: 640, h: 480}, 1)
	if err != nil {
		t.Fatalf("NewSurface: %v", err)
	}
	r, err := NewRenderer(d, surf)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return r, sc
}

// TestFramePipelining exercises the §8 "Frame pipelining" shape: a
// run of N frames produces N acquire/present pairs and N submits
// signalling consecutive timeline values, with the fence only
// blocking once at least FrameQueueLength frames have been
// submitted (this implementation fixes FrameQueueLength at 3, where
// the spec's illustrative worked example parameterizes it as K — the
// call-count relationship max(0, N-K) still holds with K=3).
func TestFramePipelining(t *testing.T) {
	r, sc := newTestRenderer(t)
	defer r.Destroy()

	const n = 5
	done := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := r.Frame(func(w *GraphicsWork, uniformOffset int64, swapchainIndex int) {}); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Frame: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frame loop did not complete within 5s; likely deadlocked on a fence wait")
	}

	if sc.nextCalls != n {
		t.Errorf("swapchain Next calls = %d, want %d", sc.nextCalls, n)
	}
	if sc.presentCalls != n {
		t.Errorf("swapchain Present calls = %d, want %d", sc.presentCalls, n)
	}
	if v := r.fence.Value(); v != n {
		t.Errorf("fence value after %d frames = %d, want %d", n, v, n)
	}
}

func TestRendererResizeOnOutOfDate(t *testing.T) {
	r, sc := newTestRenderer(t)
	defer r.Destroy()

	sc.nextOutOfDate = true
	if err := r.Frame(func(w *GraphicsWork, uniformOffset int64, swapchainIndex int) {}); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if sc.recreateCalls != 1 {
		t.Errorf("Recreate calls = %d, want 1 after an out-of-date acquire", sc.recreateCalls)
	}
}
