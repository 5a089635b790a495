// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

//go:build linux || windows

package engine

import (
	_ "github.com/ashlarengine/runtime/driver/vk"

	"github.com/ashlarengine/runtime/engine/internal/ctx"
)

func init() {
	if err := ctx.Load("vulkan"); err != nil {
		// Fall back to whatever driver registered itself, so a
		// test build linking only engine/internal/testgpu's fake
		// driver still has something to run against.
		if err = ctx.Load(""); err != nil {
			panic(err)
		}
	}
}
