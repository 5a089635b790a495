// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package vk

// requiredInstanceExtensions returns the instance extensions this
// backend always requests. Platform-specific surface extensions
// (VK_KHR_win32_surface, VK_KHR_xcb_surface, VK_KHR_wayland_surface,
// ...) are the embedding windowing integration's responsibility to
// enable on its own instance if it creates one; this package targets
// only the portable subset plus VK_KHR_surface, since the concrete
// surface handle is supplied by the embedder through surfaceProvider
// (see present.go).
func requiredInstanceExtensions() []string {
	return []string{
		"VK_KHR_surface\x00",
		"VK_KHR_get_physical_device_properties2\x00",
	}
}

// requiredDeviceExtensions returns the device extensions required to
// implement the driver interfaces: swapchain presentation, timeline
// semaphores, buffer device addresses and descriptor indexing
// (bindless descriptor arrays, §4.3).
func requiredDeviceExtensions() []string {
	return []string{
		"VK_KHR_swapchain\x00",
		"VK_KHR_timeline_semaphore\x00",
		"VK_KHR_buffer_device_address\x00",
		"VK_EXT_descriptor_indexing\x00",
	}
}
