// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

// Package ctx provides the GPU driver used by the engine.
package ctx

import (
	"errors"
	"strings"

	"github.com/ashlarengine/runtime/driver"
)

var (
	drv      driver.Driver
	gpu      driver.GPU
	limits   driver.Limits
	features driver.Features
)

var errNoDriver = errors.New("ctx: driver not found")

// Load attempts to load any driver whose name contains the
// provided name string. It is case-sensitive. If name is the
// empty string, all registered drivers are considered.
// It assumes that the package-level driver and GPU are unset and
// replaces both on success, also caching Limits and Features.
func Load(name string) error {
	drivers := driver.Drivers()
	err := errNoDriver
	for i := range drivers {
		if !strings.Contains(drivers[i].Name(), name) {
			continue
		}
		var u driver.GPU
		if u, err = drivers[i].Open(); err != nil {
			continue
		}
		drv = drivers[i]
		gpu = u
		limits = gpu.Limits()
		features = gpu.Features()
		return nil
	}
	return err
}

// Driver returns the loaded driver.Driver.
func Driver() driver.Driver { return drv }

// GPU returns the loaded driver.GPU.
func GPU() driver.GPU { return gpu }

// Limits returns driver.Limits of the context's GPU.
// This value is retrieved only once, at Load time. It must not be
// changed by the caller.
func Limits() *driver.Limits { return &limits }

// Features returns driver.Features of the context's GPU.
// This value is retrieved only once, at Load time.
func Features() *driver.Features { return &features }
