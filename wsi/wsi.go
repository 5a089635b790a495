// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

// Package wsi defines the window system integration boundary
// consumed by driver.Presenter. Window creation, input handling
// and event dispatch are the responsibility of the embedding
// application; this package only names the surface the renderer
// draws into.
package wsi

// Window is the interface that defines a drawable window.
// The purpose of a window is to provide a surface into
// which a GPU can draw.
type Window interface {
	// Width returns the window's current width, in pixels.
	Width() int

	// Height returns the window's current height, in pixels.
	Height() int

	// Title returns the window's title.
	Title() string
}
