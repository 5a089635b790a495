// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

// Package vk implements the driver interfaces using the Vulkan API,
// via the github.com/vulkan-go/vulkan bindings.
package vk

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/ashlarengine/runtime/driver"
)

const driverName = "vulkan"

func init() {
	driver.Register(&Driver{})
}

// Driver implements driver.Driver and driver.GPU over a single
// Vulkan instance/physical device pair. Open is idempotent once a
// device has been selected: subsequent calls return the same *Driver
// acting as its own driver.GPU.
type Driver struct {
	instance vk.Instance
	debugCB  vk.DebugReportCallback

	physDev  vk.PhysicalDevice
	physProp vk.PhysicalDeviceProperties
	memProp  vk.PhysicalDeviceMemoryProperties

	device vk.Device

	qfam        [3]uint32 // indexed by driver.QueueType
	queues      [3]vk.Queue
	queueMus    [3]sync.Mutex
	hasTransfer bool
	hasCompute  bool

	lim driver.Limits
	feat driver.Features

	cmdPools commandPool

	opened bool
}

// Name identifies this driver in the registry.
func (d *Driver) Name() string { return driverName }

// Open enumerates physical devices, preferring a discrete GPU, and
// creates a logical device exposing a graphics queue plus, when
// available, dedicated compute and transfer queues. When no
// dedicated transfer queue exists, transfer operations alias the
// compute queue; when no dedicated compute queue exists either, they
// alias graphics (§4.2 "fails soft").
func (d *Driver) Open() (driver.GPU, error) {
	if d.opened {
		return d, nil
	}
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrNotInstalled, err)
	}
	if err := d.createInstance(); err != nil {
		return nil, err
	}
	if err := d.pickPhysicalDevice(); err != nil {
		return nil, err
	}
	if err := d.createDevice(); err != nil {
		return nil, err
	}
	d.fillLimits()
	d.opened = true
	return d, nil
}

func (d *Driver) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: safeCString("ashlarengine"),
		ApiVersion:    vk.ApiVersion12,
	}
	layers := []string{}
	exts := requiredInstanceExtensions()
	info := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
		EnabledLayerCount:       uint32(len(layers)),
	}
	var inst vk.Instance
	if res := vk.CreateInstance(&info, nil, &inst); res != vk.Success {
		return fmt.Errorf("%w: vkCreateInstance: %v", driver.ErrNotInstalled, res)
	}
	d.instance = inst
	vk.InitInstance(inst)
	return nil
}

// pickPhysicalDevice selects a discrete GPU when one is present,
// falling back to physical device 0 (§4.1 "picks a discrete device
// when available; falls back to device 0").
func (d *Driver) pickPhysicalDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(d.instance, &count, nil)
	if count == 0 {
		return driver.ErrNoDevice
	}
	devs := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(d.instance, &count, devs)

	best := devs[0]
	var bestProp vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(best, &bestProp)
	bestProp.Deref()

	for _, pd := range devs[1:] {
		var prop vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(pd, &prop)
		prop.Deref()
		if prop.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu && bestProp.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			best, bestProp = pd, prop
		}
	}
	d.physDev = best
	d.physProp = bestProp
	vk.GetPhysicalDeviceMemoryProperties(best, &d.memProp)
	d.memProp.Deref()
	return nil
}

func (d *Driver) createDevice() error {
	var famCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(d.physDev, &famCount, nil)
	fams := make([]vk.QueueFamilyProperties, famCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.physDev, &famCount, fams)
	for i := range fams {
		fams[i].Deref()
	}

	gfxFam, ok := findQueueFamily(fams, vk.QueueFlags(vk.QueueGraphicsBit), 0)
	if !ok {
		return driver.ErrNoDevice
	}
	compFam, hasComp := findQueueFamily(fams, vk.QueueFlags(vk.QueueComputeBit), vk.QueueFlags(vk.QueueGraphicsBit))
	xferFam, hasXfer := findQueueFamily(fams, vk.QueueFlags(vk.QueueTransferBit), vk.QueueFlags(vk.QueueGraphicsBit|vk.QueueComputeBit))

	d.qfam[driver.Graphics] = gfxFam
	d.hasCompute = hasComp
	d.hasTransfer = hasXfer
	if hasComp {
		d.qfam[driver.Compute] = compFam
	} else {
		d.qfam[driver.Compute] = gfxFam
	}
	if hasXfer {
		d.qfam[driver.Transfer] = xferFam
	} else {
		d.qfam[driver.Transfer] = d.qfam[driver.Compute]
	}

	uniqueFams := uniqueUint32(d.qfam[:])
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(uniqueFams))
	priority := []float32{1}
	for i, f := range uniqueFams {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: f,
			QueueCount:       1,
			PQueuePriorities: priority,
		}
	}

	exts := requiredDeviceExtensions()

	timelineFeat := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureType(1000207000), // VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_TIMELINE_SEMAPHORE_FEATURES
		TimelineSemaphore: vk.True,
	}
	addrFeat := vk.PhysicalDeviceBufferDeviceAddressFeatures{
		SType:               vk.StructureType(1000257000), // VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_BUFFER_DEVICE_ADDRESS_FEATURES
		BufferDeviceAddress: vk.True,
		PNext:               unsafe.Pointer(&timelineFeat),
	}
	descIdxFeat := vk.PhysicalDeviceDescriptorIndexingFeatures{
		SType: vk.StructureType(1000161001), // VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_DESCRIPTOR_INDEXING_FEATURES
		ShaderSampledImageArrayNonUniformIndexing:          vk.True,
		DescriptorBindingPartiallyBound:                    vk.True,
		DescriptorBindingVariableDescriptorCount:            vk.True,
		RuntimeDescriptorArray:                              vk.True,
		PNext: unsafe.Pointer(&addrFeat),
	}

	info := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&descIdxFeat),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(exts)),
		PpEnabledExtensionNames: exts,
	}

	var dev vk.Device
	if res := vk.CreateDevice(d.physDev, &info, nil, &dev); res != vk.Success {
		return fmt.Errorf("%w: vkCreateDevice: %v", driver.ErrFatal, res)
	}
	d.device = dev
	vk.InitDevice(dev)

	for qt := driver.Transfer; qt <= driver.Graphics; qt++ {
		var q vk.Queue
		vk.GetDeviceQueue(dev, d.qfam[qt], 0, &q)
		d.queues[qt] = q
	}

	d.feat = driver.Features{
		TimelineSemaphore:  true,
		BufferDeviceAddress: true,
		DescriptorIndexing: true,
	}
	return nil
}

func (d *Driver) fillLimits() {
	lim := d.physProp.Limits
	lim.Deref()
	d.lim = driver.Limits{
		MaxImage1D:                int(lim.MaxImageDimension1D),
		MaxImage2D:                int(lim.MaxImageDimension2D),
		MaxImageCube:              int(lim.MaxImageDimensionCube),
		MaxImage3D:                int(lim.MaxImageDimension3D),
		MaxLayers:                 int(lim.MaxImageArrayLayers),
		MaxDescHeaps:              int(lim.MaxBoundDescriptorSets),
		MaxColorTargets:           int(lim.MaxColorAttachments),
		MaxFBSize:                 [2]int{int(lim.MaxFramebufferWidth), int(lim.MaxFramebufferHeight)},
		MaxFBLayers:               int(lim.MaxFramebufferLayers),
		MaxPointSize:              lim.PointSizeRange[1],
		MaxViewports:              int(lim.MaxViewports),
		MaxVertexIn:               int(lim.MaxVertexInputAttributes),
		MaxFragmentIn:             int(lim.MaxFragmentInputComponents),
		MaxDispatch:               [3]int{int(lim.MaxComputeWorkGroupCount[0]), int(lim.MaxComputeWorkGroupCount[1]), int(lim.MaxComputeWorkGroupCount[2])},
		MinUniformBufferAlignment: int64(lim.MinUniformBufferOffsetAlignment),
		MaxPushConstantSize:       int(lim.MaxPushConstantsSize),
	}
}

// Driver returns d, since Driver doubles as its own GPU.
func (d *Driver) Driver() driver.Driver { return d }

// Limits returns the selected physical device's limits.
func (d *Driver) Limits() driver.Limits { return d.lim }

// Features returns the optional capabilities enabled on this device.
func (d *Driver) Features() driver.Features { return d.feat }

// WaitIdle blocks until every queue on the device is idle.
func (d *Driver) WaitIdle() error {
	if res := vk.DeviceWaitIdle(d.device); res != vk.Success {
		return fmt.Errorf("%w: vkDeviceWaitIdle: %v", driver.ErrFatal, res)
	}
	return nil
}

// Close destroys the logical device and instance.
func (d *Driver) Close() {
	if d.device != nil {
		vk.DeviceWaitIdle(d.device)
		vk.DestroyDevice(d.device, nil)
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
	}
	d.opened = false
}

func findQueueFamily(fams []vk.QueueFamilyProperties, want, avoid vk.QueueFlags) (uint32, bool) {
	for i, f := range fams {
		flags := vk.QueueFlags(f.QueueFlags)
		if flags&want == 0 {
			continue
		}
		if avoid != 0 && flags&avoid != 0 {
			continue
		}
		return uint32(i), true
	}
	for i, f := range fams {
		if vk.QueueFlags(f.QueueFlags)&want != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

func uniqueUint32(s []uint32) []uint32 {
	seen := make(map[uint32]bool)
	var out []uint32
	for _, v := range s {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func safeCString(s string) string { return s + "\x00" }
