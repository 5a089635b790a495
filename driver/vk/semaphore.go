// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

// NewSemaphore creates a timeline semaphore initialized to initValue.
func (d *Driver) NewSemaphore(initValue uint64) (driver.Semaphore, error) {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureType(1000207002), // VK_STRUCTURE_TYPE_SEMAPHORE_TYPE_CREATE_INFO
		SemaphoreType: vk.SemaphoreType(1),           // VK_SEMAPHORE_TYPE_TIMELINE
		InitialValue:  initValue,
	}
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}
	var sem vk.Semaphore
	if res := vk.CreateSemaphore(d.device, &info, nil, &sem); res != vk.Success {
		return nil, fmt.Errorf("%w: vkCreateSemaphore: %v", driver.ErrFatal, res)
	}
	return &Semaphore{dev: d.device, sem: sem}, nil
}

// Semaphore implements driver.Semaphore over a single Vulkan timeline
// semaphore.
type Semaphore struct {
	dev vk.Device
	sem vk.Semaphore
}

// Value returns the semaphore's current counter value.
func (s *Semaphore) Value() (uint64, error) {
	var v uint64
	if res := vk.GetSemaphoreCounterValue(s.dev, s.sem, &v); res != vk.Success {
		return 0, fmt.Errorf("%w: vkGetSemaphoreCounterValue: %v", driver.ErrFatal, res)
	}
	return v, nil
}

// Wait blocks until the semaphore reaches at least value or the
// timeout elapses.
func (s *Semaphore) Wait(value uint64, timeoutNanos int64) error {
	sems := []vk.Semaphore{s.sem}
	values := []uint64{value}
	waitInfo := vk.SemaphoreWaitInfo{
		SType:          vk.StructureType(1000207004), // VK_STRUCTURE_TYPE_SEMAPHORE_WAIT_INFO
		SemaphoreCount: 1,
		PSemaphores:    sems,
		PValues:        values,
	}
	res := vk.WaitSemaphores(s.dev, &waitInfo, uint64(timeoutNanos))
	if res == vk.Timeout {
		return fmt.Errorf("%w: timeline semaphore wait timed out", driver.ErrFatal)
	}
	if res != vk.Success {
		return fmt.Errorf("%w: vkWaitSemaphores: %v", driver.ErrFatal, res)
	}
	return nil
}

// Destroy destroys the underlying VkSemaphore.
func (s *Semaphore) Destroy() { vk.DestroySemaphore(s.dev, s.sem, nil) }
