// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"fmt"
	"log"

	"github.com/ashlarengine/runtime/driver"
)

// imageRes is the data a Device keeps for a live Image handle.
type imageRes struct {
	img      driver.Image
	view     driver.ImageView
	pf       driver.PixelFmt
	size     driver.Dim3D
	usage    ResUsage
	sampled  uint32
	hasSamp  bool
	storage  uint32
	hasStore bool
}

// bufferRes is the data a Device keeps for a live Buffer handle.
type bufferRes struct {
	buf      driver.Buffer
	size     int64
	usage    ResUsage
	storage  uint32
	hasStore bool
}

// Device owns every GPU resource table: images, buffers, shaders,
// samplers, and the three bindless descriptor arrays. Per the
// shared-resource policy (§6), a Device and everything reachable
// through it must only be touched from the thread that created it.
type Device struct {
	gpu driver.GPU

	images  slotTable[imageRes]
	buffers slotTable[bufferRes]
	shaders slotTable[driver.ShaderCode]
	samplers slotTable[driver.Sampler]

	sampledImages *BindlessSet
	storageImages *BindlessSet
	storageBuffers *BindlessSet

	defaultSampler driver.Sampler

	pushConstSize    int
	pushConstSizeSet bool
}

// NewDevice creates a Device over gpu, allocating the three bindless
// descriptor arrays. Slot 0 of each array is reserved, but no
// sentinel resource is created for it and its descriptor is left
// unwritten.
func NewDevice(gpu driver.GPU) (*Device, error) {
	d := &Device{gpu: gpu}

	splr, err := gpu.NewSampler(&driver.Sampling{Min: driver.FLinear, Mag: driver.FLinear, Mipmap: driver.FLinear})
	if err != nil {
		return nil, fmt.Errorf("engine: device: %w", err)
	}
	d.defaultSampler = splr

	d.sampledImages, err = NewBindlessSet(gpu, BindlessSampledImage, cfg.MaxBindlessImage)
	if err != nil {
		return nil, fmt.Errorf("engine: device: %w", err)
	}
	d.storageImages, err = NewBindlessSet(gpu, BindlessStorageImage, cfg.MaxBindlessImage)
	if err != nil {
		return nil, fmt.Errorf("engine: device: %w", err)
	}
	d.storageBuffers, err = NewBindlessSet(gpu, BindlessStorageBuffer, cfg.MaxBindlessBuffer)
	if err != nil {
		return nil, fmt.Errorf("engine: device: %w", err)
	}

	return d, nil
}

// GPU returns the underlying driver.GPU.
func (d *Device) GPU() driver.GPU { return d.gpu }

// SampledImages, StorageImages and StorageBuffers return the
// Device's bindless descriptor arrays, for binding into a global
// DescTable and for flushing with Update once per frame.
func (d *Device) SampledImages() *BindlessSet  { return d.sampledImages }
func (d *Device) StorageImages() *BindlessSet  { return d.storageImages }
func (d *Device) StorageBuffers() *BindlessSet { return d.storageBuffers }

// CreateImage creates a new image resource, with a full view
// covering every mip level and array layer. If usg requests
// UShaderSample and/or UShaderWrite, the image is also bound into
// the matching bindless array (pending the next Update).
func (d *Device) CreateImage(pf driver.PixelFmt, size driver.Dim3D, layers, levels, samples int, usg driver.Usage) (Handle[imageRes], error) {
	img, err := d.gpu.NewImage(pf, size, layers, levels, samples, usg)
	if err != nil {
		return Invalid[imageRes](), err
	}
	view, err := img.NewView(driver.IView2D, 0, layers, 0, levels)
	if err != nil {
		img.Destroy()
		return Invalid[imageRes](), err
	}
	r := imageRes{img: img, view: view, pf: pf, size: size, usage: UsageNone}
	if usg&driver.UShaderSample != 0 {
		r.sampled = d.sampledImages.Bind(BindlessDescriptor{View: view, Sampler: d.defaultSampler})
		r.hasSamp = true
	}
	if usg&driver.UShaderWrite != 0 {
		r.storage = d.storageImages.Bind(BindlessDescriptor{View: view})
		r.hasStore = true
	}
	return d.images.New(r), nil
}

// DestroyImage releases an image's GPU resources and its bindless
// slots, if any. Looking up the destroyed handle afterward reports
// missing, and a later CreateImage reusing the same slot index does
// not cause the old handle to resolve (§8 "Handle invalidation").
func (d *Device) DestroyImage(h Handle[imageRes]) {
	r, ok := d.images.Free(h)
	if !ok {
		log.Printf("engine: destroy_image: handle lookup miss")
		return
	}
	if r.hasSamp {
		d.sampledImages.Unbind(r.sampled)
	}
	if r.hasStore {
		d.storageImages.Unbind(r.storage)
	}
	r.view.Destroy()
	r.img.Destroy()
}

// GetImage returns the live image resource for h, or ok == false if
// h is invalid or has been destroyed.
func (d *Device) GetImage(h Handle[imageRes]) (imageRes, bool) {
	return d.images.Get(h)
}

// TransitionImage emits (or batches) a barrier moving h's usage tag
// from its current value to usage, and updates the tag. A no-op
// graphics-shader-read -> graphics-shader-read transition emits
// nothing.
func (d *Device) TransitionImage(cb driver.CmdBuffer, h Handle[imageRes], usage ResUsage) {
	if !h.IsValid() {
		log.Printf("engine: transition_image: handle lookup miss")
		return
	}
	idx, gen := decode(h.index)
	if int(idx) >= len(d.images.entries) || !d.images.entries[idx].live || d.images.entries[idx].gen != gen {
		log.Printf("engine: transition_image: handle lookup miss")
		return
	}
	r := &d.images.entries[idx].data
	t, noop := imageBarrier(r.usage, usage, r.view)
	r.usage = usage
	if noop {
		return
	}
	cb.Transition([]driver.Transition{t})
}

// CreateBuffer creates a new buffer resource. If usg requests
// UShaderWrite it is also bound into the storage-buffer bindless
// array (pending the next Update).
func (d *Device) CreateBuffer(size int64, visible bool, usg driver.Usage) (Handle[bufferRes], error) {
	buf, err := d.gpu.NewBuffer(size, visible, usg)
	if err != nil {
		return Invalid[bufferRes](), err
	}
	r := bufferRes{buf: buf, size: size, usage: UsageNone}
	if usg&driver.UShaderWrite != 0 {
		r.storage = d.storageBuffers.Bind(BindlessDescriptor{Buffer: buf, Size: size})
		r.hasStore = true
	}
	return d.buffers.New(r), nil
}

// DestroyBuffer releases a buffer's GPU resources and its bindless
// slot, if any.
func (d *Device) DestroyBuffer(h Handle[bufferRes]) {
	r, ok := d.buffers.Free(h)
	if !ok {
		log.Printf("engine: destroy_buffer: handle lookup miss")
		return
	}
	if r.hasStore {
		d.storageBuffers.Unbind(r.storage)
	}
	r.buf.Destroy()
}

// GetBuffer returns the live buffer resource for h.
func (d *Device) GetBuffer(h Handle[bufferRes]) (bufferRes, bool) {
	return d.buffers.Get(h)
}

// TransitionBuffer emits a barrier moving h's usage tag to usage.
func (d *Device) TransitionBuffer(cb driver.CmdBuffer, h Handle[bufferRes], usage ResUsage) {
	if !h.IsValid() {
		log.Printf("engine: transition_buffer: handle lookup miss")
		return
	}
	idx, gen := decode(h.index)
	if int(idx) >= len(d.buffers.entries) || !d.buffers.entries[idx].live || d.buffers.entries[idx].gen != gen {
		log.Printf("engine: transition_buffer: handle lookup miss")
		return
	}
	r := &d.buffers.entries[idx].data
	b := bufferBarrier(r.usage, usage)
	r.usage = usage
	cb.Barrier([]driver.Barrier{b})
}

// CreateShader wraps raw shader binary data as a driver.ShaderCode.
func (d *Device) CreateShader(data []byte) (Handle[driver.ShaderCode], error) {
	sc, err := d.gpu.NewShaderCode(data)
	if err != nil {
		return Invalid[driver.ShaderCode](), err
	}
	return d.shaders.New(sc), nil
}

// DestroyShader releases a shader's GPU resources.
func (d *Device) DestroyShader(h Handle[driver.ShaderCode]) {
	sc, ok := d.shaders.Free(h)
	if !ok {
		log.Printf("engine: destroy_shader: handle lookup miss")
		return
	}
	sc.Destroy()
}

// CheckPushConstantSize records the push-constant range size every
// GraphState/CompState built on this Device must agree on, and
// reports an error on the first mismatch (§9 "push-constant layout
// collisions").
func (d *Device) CheckPushConstantSize(size int) error {
	if !d.pushConstSizeSet {
		d.pushConstSize = size
		d.pushConstSizeSet = true
		return nil
	}
	if size != d.pushConstSize {
		return fmt.Errorf("engine: pipeline push-constant size %d does not match device layout %d", size, d.pushConstSize)
	}
	return nil
}

// SetDebugName attaches a debug label to a GPU object, if the
// backend supports it. It is a no-op otherwise (§[FULL] "Debug
// object naming").
func (d *Device) SetDebugName(obj driver.Destroyer, name string) {
	if n, ok := obj.(interface{ SetDebugName(string) }); ok {
		n.SetDebugName(name)
	}
}
