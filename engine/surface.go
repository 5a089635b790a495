// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"errors"

	"github.com/ashlarengine/runtime/driver"
	"github.com/ashlarengine/runtime/wsi"
)

var errNoPresenter = errors.New("engine: driver.GPU does not implement driver.Presenter")

// Surface binds a wsi.Window to a swapchain, tracking which image
// view is currently acquired so the renderer can target it and the
// Device can be told when the window's size changes.
type Surface struct {
	win wsi.Window
	sc  driver.Swapchain

	format driver.PixelFmt
	width  int
	height int

	curIndex int
	acquired bool
}

// NewSurface creates a Surface over win, requesting imageCount + 1
// backbuffers so that FrameQueueLength frames can have one in flight
// each without stalling on acquire.
func NewSurface(gpu driver.GPU, win wsi.Window, imageCount int) (*Surface, error) {
	pres, ok := gpu.(driver.Presenter)
	if !ok {
		return nil, errNoPresenter
	}
	sc, err := pres.NewSwapchain(win, imageCount+1)
	if err != nil {
		return nil, err
	}
	return &Surface{
		win:    win,
		sc:     sc,
		format: sc.Format(),
		width:  win.Width(),
		height: win.Height(),
	}, nil
}

// Destroy releases the underlying swapchain. It does not close win.
func (s *Surface) Destroy() { s.sc.Destroy() }

// Format returns the swapchain's pixel format.
func (s *Surface) Format() driver.PixelFmt { return s.format }

// Views returns the swapchain's image views.
func (s *Surface) Views() []driver.ImageView { return s.sc.Views() }

// AcquireNext acquires the next writable swapchain image for the
// frame about to be recorded into w. If the swapchain reports
// out-of-date, the returned index need not name an acquired image,
// and the caller must call Resize before the next AcquireNext
// (§4.9/§4.10 "resize is a first-class per-frame outcome, not an error").
func (s *Surface) AcquireNext(w *GraphicsWork) (index int, outOfDate bool, err error) {
	index, outOfDate, err = s.sc.Next(w.CmdBuffer())
	if err != nil {
		return
	}
	s.curIndex = index
	s.acquired = true
	return
}

// Present presents the currently acquired image, recorded up to and
// including w.
func (s *Surface) Present(w *GraphicsWork) error {
	if !s.acquired {
		return errors.New("engine: present called without a matching AcquireNext")
	}
	s.acquired = false
	return s.sc.Present(s.curIndex, w.CmdBuffer())
}

// Resize recreates the swapchain against the window's current
// dimensions. It must be called after an AcquireNext that reported
// outOfDate, or after a Present that failed with driver.ErrSwapchain.
func (s *Surface) Resize() error {
	if err := s.sc.Recreate(); err != nil {
		return err
	}
	s.width = s.win.Width()
	s.height = s.win.Height()
	return nil
}

// Width and Height return the surface's current dimensions, updated
// by the most recent Resize.
func (s *Surface) Width() int  { return s.width }
func (s *Surface) Height() int { return s.height }
