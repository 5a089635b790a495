// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package driver

// QueueType identifies one of the three queues a GPU exposes.
// Capability is nested: a Graphics-capable command buffer exposes every
// Compute operation, and a Compute-capable command buffer exposes every
// Transfer operation.
type QueueType int

// Queue types.
const (
	Transfer QueueType = iota
	Compute
	Graphics
)

// GPU is the main interface to an underlying driver implementation.
// It is used to create other types and to execute commands.
// A GPU is obtained from a call to Driver.Open.
type GPU interface {
	// Driver returns the Driver that owns the GPU.
	Driver() Driver

	// Commit commits a batch of command buffers to the GPU for
	// execution. Wait operations defined in a command buffer apply
	// to the batch as a whole, so the order of command buffers in
	// cb is meaningful. This method sends the result to ch when all
	// commands complete execution. Command buffers in cb cannot be
	// used for recording until then.
	// If sig is non-nil, sig.Sem is signaled to sig.Value on the
	// same completion event, establishing a timeline-semaphore
	// ordering point usable by CPU waits (Semaphore.Wait) or by a
	// subsequent Commit's WaitSemaphore.
	Commit(cb []CmdBuffer, ch chan<- error, sig *SemaphoreSignal) error

	// NewCmdBuffer creates a new command buffer bound to the given
	// queue type. Queue discovery fails soft: if no dedicated queue
	// family backs qt, the GPU aliases the next capable queue
	// (Transfer onto Compute, Compute onto Graphics).
	NewCmdBuffer(qt QueueType) (CmdBuffer, error)

	// NewRenderPass creates a new render pass.
	NewRenderPass(att []Attachment, sub []Subpass) (RenderPass, error)

	// NewShaderCode creates a new shader code.
	NewShaderCode(data []byte) (ShaderCode, error)

	// NewDescHeap creates a new descriptor heap.
	NewDescHeap(ds []Descriptor) (DescHeap, error)

	// NewDescTable creates a new descriptor table.
	NewDescTable(dh []DescHeap) (DescTable, error)

	// NewPipeline creates a new pipeline.
	// The state parameter must be a pointer to a GraphState or a
	// pointer to a CompState.
	NewPipeline(state any) (Pipeline, error)

	// NewBuffer creates a new buffer.
	NewBuffer(size int64, visible bool, usg Usage) (Buffer, error)

	// NewImage creates a new image.
	NewImage(pf PixelFmt, size Dim3D, layers, levels, samples int, usg Usage) (Image, error)

	// NewSampler creates a new Sampler.
	NewSampler(spln *Sampling) (Sampler, error)

	// NewSemaphore creates a timeline semaphore initialized to the
	// given value. It is the GPU-side counterpart of engine.Fence.
	NewSemaphore(initValue uint64) (Semaphore, error)

	// Limits returns the implementation limits.
	// They are immutable for the lifetime of the GPU.
	Limits() Limits

	// Features returns the implementation's optional feature set.
	Features() Features

	// WaitIdle blocks until every queue on the GPU is idle.
	WaitIdle() error
}

// Destroyer is the interface that wraps the Destroy method.
// Types that implement this interface may allocate external memory
// that is not managed by GC, so Destroy must be called explicitly
// to ensure such memory is deallocated.
type Destroyer interface {
	Destroy()
}

// Semaphore is a GPU timeline semaphore: a 64-bit monotonically
// increasing counter usable for CPU waits, GPU waits and signals.
type Semaphore interface {
	Destroyer

	// Value returns the semaphore's current counter value.
	// It may be stale with respect to in-flight GPU work; callers
	// that need an up to date value should Wait instead.
	Value() (uint64, error)

	// Wait blocks the calling goroutine until the semaphore reaches
	// at least value, or until timeoutNanos elapses.
	// Exceeding the timeout is reported through ErrFatal: callers
	// are expected to treat it as unrecoverable (§7).
	Wait(value uint64, timeoutNanos int64) error
}

// SemaphoreSignal pairs a Semaphore with the value it must be
// signaled to on completion of a Commit.
type SemaphoreSignal struct {
	Sem   Semaphore
	Value uint64
}

// SemaphoreWait pairs a Semaphore with the value a command buffer
// must observe (on the GPU timeline) before starting at DstStage.
type SemaphoreWait struct {
	Sem      Semaphore
	Value    uint64
	DstStage Sync
}

// CmdBuffer is the interface that defines a command buffer.
// Commands are recorded into command buffers and later committed to
// the GPU for execution. Recording is separated into logical blocks
// containing either rendering, compute or copy commands. Multiple
// logical blocks can be recorded into a single command buffer.
//
// To record commands for a render pass:
//  1. call BeginPass
//  2. call Set* methods to configure rendering state
//  3. call Draw* commands
//  4. call NextSubpass (if using multiple subpasses)
//  5. repeat 2-4 as needed
//  6. call EndPass
//
// To record compute commands:
//  1. call BeginWork
//  2. call Set* methods to configure compute state
//  3. call Dispatch commands
//  4. repeat 2-3 as needed
//  5. call EndWork
//
// To record copy commands:
//  1. call BeginBlit
//  2. call Copy*/Fill commands
//  3. call EndBlit
//
// Finally, call End and, if it succeeds, GPU.Commit.
// Begin* commands must not be nested, and must always be ended
// before another call to Begin* and prior to the final End call.
type CmdBuffer interface {
	Destroyer

	// QueueType returns the queue type this command buffer was
	// created for.
	QueueType() QueueType

	// Begin prepares the command buffer for recording.
	// This method must be called before any command is recorded.
	// It needs to be called again if the command buffer was
	// committed or reset.
	Begin() error

	// WaitSemaphore adds a GPU-side wait on the given timeline
	// semaphore value before any work in this command buffer
	// begins executing at or after w.DstStage.
	WaitSemaphore(w SemaphoreWait)

	BeginPass(pass RenderPass, fb Framebuf, clear []ClearValue)
	NextSubpass()
	EndPass()

	BeginWork(wait bool)
	EndWork()

	BeginBlit(wait bool)
	EndBlit()

	SetPipeline(pl Pipeline)
	SetViewport(vp []Viewport)
	SetScissor(sciss []Scissor)
	SetBlendColor(r, g, b, a float32)
	SetStencilRef(value uint32)
	SetVertexBuf(start int, buf []Buffer, off []int64)
	SetIndexBuf(format IndexFmt, buf Buffer, off int64)
	SetDescTableGraph(table DescTable, start int, heapCopy []int)
	SetDescTableComp(table DescTable, start int, heapCopy []int)
	SetPushConstant(data []byte)

	Draw(vertCount, instCount, baseVert, baseInst int)
	DrawIndexed(idxCount, instCount, baseIdx, vertOff, baseInst int)
	Dispatch(grpCountX, grpCountY, grpCountZ int)

	CopyBuffer(param *BufferCopy)
	CopyImage(param *ImageCopy)
	CopyBufToImg(param *BufImgCopy)
	CopyImgToBuf(param *BufImgCopy)
	Fill(buf Buffer, off int64, value byte, size int64)

	Barrier(b []Barrier)
	Transition(t []Transition)

	// End ends command recording and prepares the command buffer
	// for execution. New recordings are not allowed until the
	// command buffer is committed or reset. Upon failure, the
	// command buffer is reset.
	End() error

	// Reset discards all recorded commands from the command buffer.
	Reset() error
}

// BufferCopy describes the parameters of a copy command that copies
// data from one buffer to another.
type BufferCopy struct {
	From    Buffer
	FromOff int64
	To      Buffer
	ToOff   int64
	Size    int64
}

// ImageCopy describes the parameters of a copy command that copies
// data from one image to another.
type ImageCopy struct {
	From      Image
	FromOff   Off3D
	FromLayer int
	FromLevel int
	To        Image
	ToOff     Off3D
	ToLayer   int
	ToLevel   int
	Size      Dim3D
	Layers    int
}

// BufImgCopy describes the parameters of a copy command that copies
// data between a buffer and an image.
// BufOff must be aligned to 512 bytes. Stride[0] must be aligned to
// 256 bytes.
type BufImgCopy struct {
	Buf    Buffer
	BufOff int64
	// Stride specifies the addressing of image data in the buffer,
	// in pixels. Stride[0] is the row length and Stride[1] is the
	// image height.
	Stride    [2]int64
	Img       Image
	ImgOff    Off3D
	Layer     int
	Level     int
	Size      Dim3D
	DepthCopy bool
}

// Sync is the type of a synchronization scope.
type Sync int

// Synchronization scopes.
const (
	SVertexInput Sync = 1 << iota
	SVertexShading
	SFragmentShading
	SComputeShading
	SColorOutput
	SDSOutput
	SDraw
	SResolve
	SCopy
	SHost
	SAll
	SNone Sync = 0
)

// Access is the type of a memory access scope.
type Access int

// Memory access scopes.
const (
	AVertexBufRead Access = 1 << iota
	AIndexBufRead
	AColorRead
	AColorWrite
	ADSRead
	ADSWrite
	AResolveRead
	AResolveWrite
	ACopyRead
	ACopyWrite
	AShaderRead
	AShaderWrite
	AHostWrite
	AIndirectRead
	AAnyRead
	AAnyWrite
	ANone Access = 0
)

// Layout is the type of an image layout.
type Layout int

// Image layouts.
const (
	LUndefined Layout = iota
	LCommon
	LColorTarget
	LDSTarget
	LDSRead
	LResolveSrc
	LResolveDst
	LCopySrc
	LCopyDst
	LShaderRead
	LPresent
)

// Barrier represents a synchronization barrier.
type Barrier struct {
	SyncBefore   Sync
	SyncAfter    Sync
	AccessBefore Access
	AccessAfter  Access
}

// Transition represents a layout transition on a specific image
// subresource.
type Transition struct {
	Barrier

	LayoutBefore Layout
	LayoutAfter  Layout
	IView        ImageView
}

// LoadOp is the type of an attachment's load operation.
type LoadOp int

// Load operations.
const (
	LDontCare LoadOp = iota
	LClear
	LLoad
)

// StoreOp is the type of an attachment's store operation.
type StoreOp int

// Store operations.
const (
	SDontCare StoreOp = iota
	SStore
)

// Attachment describes the configuration of a single render target
// for use in a render pass.
type Attachment struct {
	Format  PixelFmt
	Samples int
	Load    [2]LoadOp
	Store   [2]StoreOp
}

// Subpass defines a subpass of a render pass.
type Subpass struct {
	Color []int
	DS    int
	MSR   []int
	Wait  bool
}

// RenderPass is the interface that defines a render pass into which
// draw commands operate.
type RenderPass interface {
	Destroyer

	// NewFB creates a new framebuffer. Each image view in iv
	// corresponds to the render pass' attachment of the same
	// index. All framebuffers created from a given render pass
	// must be destroyed before the render pass itself.
	NewFB(iv []ImageView, width, height, layers int) (Framebuf, error)
}

// Framebuf is the interface that defines the render targets of a
// render pass.
type Framebuf interface {
	Destroyer
}

// ClearValue defines clear values for color or depth/stencil aspects
// of a render target.
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint32
}

// ShaderCode is the interface that defines a shader binary for
// execution in a programmable pipeline stage.
type ShaderCode interface {
	Destroyer
}

// ShaderFunc specifies a function within a shader binary.
type ShaderFunc struct {
	Code ShaderCode
	Name string
}

// Stage is a mask of programmable stages.
type Stage int

// Stages.
const (
	SVertex Stage = 1 << iota
	SFragment
	SCompute
	SAllStages Stage = 1<<iota - 1
)

// DescType is the type of a descriptor.
type DescType int

// Descriptor types.
const (
	DBuffer DescType = iota
	DImage
	DConstant
	DTexture
	DSampler
)

// Descriptor describes data for use in shaders.
// PartialBind, when true, creates the binding with the partially
// bound flag set so that indices in [0, Len) need not all refer to
// valid resources at draw time — the mechanism bindless arrays rely
// on (§4.3).
type Descriptor struct {
	Type        DescType
	Stages      Stage
	Nr          int
	Len         int
	PartialBind bool
}

// DescHeap is the interface that defines a set of descriptors for
// use in programmable pipeline stages.
type DescHeap interface {
	Destroyer

	// New creates enough storage for n copies of each descriptor.
	// All copies from a previous call to New are invalidated,
	// unless n equals the current Count, in which case it is a
	// no-op. New(0) frees all storage.
	New(n int) error

	SetBuffer(cpy, nr, start int, buf []Buffer, off, size []int64)
	SetImage(cpy, nr, start int, iv []ImageView)
	SetSampler(cpy, nr, start int, splr []Sampler)

	// CopyDescriptor copies a single descriptor element from one
	// array index to another within the same heap copy. It is used
	// to reset an unbound bindless slot to the sentinel descriptor
	// (§4.3) without re-issuing a full write.
	CopyDescriptor(cpy, nr, srcIndex, dstIndex int)

	Count() int
}

// DescTable is the interface that defines the bindings between a
// number of descriptor heaps and the shaders in a pipeline.
type DescTable interface {
	Destroyer
}

// VertexFmt describes the format of a vertex input.
type VertexFmt int

// Vertex formats.
const (
	Int8 VertexFmt = iota
	Int8x2
	Int8x3
	Int8x4
	Int16
	Int16x2
	Int16x3
	Int16x4
	Int32
	Int32x2
	Int32x3
	Int32x4
	UInt8
	UInt8x2
	UInt8x3
	UInt8x4
	UInt16
	UInt16x2
	UInt16x3
	UInt16x4
	UInt32
	UInt32x2
	UInt32x3
	UInt32x4
	Float32
	Float32x2
	Float32x3
	Float32x4
)

// Size returns the size in bytes of one vertex format element.
func (f VertexFmt) Size() int {
	switch f {
	case Int8, UInt8:
		return 1
	case Int8x2, UInt8x2, Int16, UInt16:
		return 2
	case Int8x3, UInt8x3:
		return 3
	case Int8x4, UInt8x4, Int16x2, UInt16x2, Int32, UInt32, Float32:
		return 4
	case Int16x3, UInt16x3:
		return 6
	case Int16x4, UInt16x4, Int32x2, UInt32x2, Float32x2:
		return 8
	case Int32x3, UInt32x3, Float32x3:
		return 12
	case Int32x4, UInt32x4, Float32x4:
		return 16
	}
	panic("driver: undefined VertexFmt constant")
}

// VertexIn describes a vertex input.
type VertexIn struct {
	Format VertexFmt
	Stride int
	Nr     int
	Name   string
}

// Topology is the type of primitive topologies.
type Topology int

// Primitive topologies.
const (
	TPoint Topology = iota
	TLine
	TLnStrip
	TTriangle
	TTriStrip
)

// IndexFmt describes the format of index buffer data.
type IndexFmt int

// Index formats.
const (
	Index16 IndexFmt = 2
	Index32 IndexFmt = 4
)

// Viewport defines the bounds of a viewport.
type Viewport struct {
	X, Y, Width, Height, Znear, Zfar float32
}

// Scissor defines a scissor rectangle.
type Scissor struct {
	X, Y, Width, Height int
}

// CullMode is the type of cull modes.
type CullMode int

// Cull modes.
const (
	CNone CullMode = iota
	CFront
	CBack
)

// FillMode is the type of triangle fill modes.
type FillMode int

// Triangle fill modes.
const (
	FFill FillMode = iota
	FLines
)

// RasterState defines the rasterization state of a graphics pipeline.
type RasterState struct {
	Clockwise  bool
	Cull       CullMode
	Fill       FillMode
	Conserv    bool
	DepthBias  bool
	BiasValue  float32
	BiasSlope  float32
	BiasClamp  float32
}

// CmpFunc is the type of comparison functions.
type CmpFunc int

// Comparison functions.
const (
	CNever CmpFunc = iota
	CLess
	CEqual
	CLessEqual
	CGreater
	CNotEqual
	CGreaterEqual
	CAlways
)

// StencilOp is the type of stencil operations.
type StencilOp int

// Stencil operations.
const (
	SKeep StencilOp = iota
	SZero
	SReplace
	SIncClamp
	SDecClamp
	SInvert
	SIncWrap
	SDecWrap
)

// StencilT defines stencil test parameters.
type StencilT struct {
	DSFail    [2]StencilOp
	Pass      StencilOp
	ReadMask  uint32
	WriteMask uint32
	Cmp       CmpFunc
}

// DSState defines the depth/stencil state of a graphics pipeline.
// DepthTest reports whether the compare op is enabled at all; when
// false, the pipeline is built with depth testing disabled
// regardless of DepthCmp's value (§4.4: "not set" treated as
// disabled).
type DSState struct {
	DepthTest   bool
	DepthWrite  bool
	DepthCmp    CmpFunc
	StencilTest bool
	Front       StencilT
	Back        StencilT
}

// BlendOp is the type of blend operations.
type BlendOp int

// Blend operations.
const (
	BAdd BlendOp = iota
	BSubtract
	BRevSubtract
	BMin
	BMax
)

// BlendFac is the type of blend factors.
type BlendFac int

// Blend factors.
const (
	BZero BlendFac = iota
	BOne
	BSrcColor
	BInvSrcColor
	BSrcAlpha
	BInvSrcAlpha
	BDstColor
	BInvDstColor
	BDstAlpha
	BInvDstAlpha
	BSrcAlphaSaturated
	BBlendColor
	BInvBlendColor
)

// ColorMask is the type of a color write mask.
type ColorMask int

// Color write masks.
const (
	CRed ColorMask = 1 << iota
	CGreen
	CBlue
	CAlpha
	CAll ColorMask = 1<<iota - 1
)

// ColorBlend defines a render target's blend parameters.
type ColorBlend struct {
	Blend     bool
	WriteMask ColorMask
	Op        [2]BlendOp
	SrcFac    [2]BlendFac
	DstFac    [2]BlendFac
}

// BlendState defines the color blend state of a graphics pipeline.
type BlendState struct {
	IndependentBlend bool
	Color            []ColorBlend
}

// GraphState defines the combination of programmable and fixed
// stages of a graphics pipeline.
type GraphState struct {
	VertFunc ShaderFunc
	FragFunc ShaderFunc
	Desc     DescTable
	Input    []VertexIn
	Topology Topology
	Raster   RasterState
	Samples  int
	DS       DSState
	Blend    BlendState
	Pass     RenderPass
	Subpass  int
	// PushConstSize is the size, in bytes, of the push-constant
	// range this pipeline's layout reserves. It must equal the
	// value every other pipeline in the device was built with
	// (§9 "push-constant layout collisions").
	PushConstSize int
}

// CompState defines the state of a compute pipeline.
type CompState struct {
	Func          ShaderFunc
	Desc          DescTable
	PushConstSize int
}

// Pipeline is the interface that defines a GPU pipeline.
type Pipeline interface {
	Destroyer
}

// Usage is a mask indicating valid uses for a resource.
type Usage int

// Usage flags for Buffer and Image.
const (
	UShaderRead Usage = 1 << iota
	UShaderWrite
	UShaderConst
	UShaderSample
	UVertexData
	UIndexData
	URenderTarget
	// UDeviceAddress allows querying a Buffer's GPU address with
	// Buffer.Address. Valid only for Buffer, and only when the GPU
	// was opened with Features().BufferDeviceAddress.
	UDeviceAddress
	UGeneric Usage = 1<<iota - 1
)

// Buffer is the interface that defines a GPU buffer.
// The size of the buffer is fixed. When a larger buffer is
// necessary, a new one must be created and the data copied
// explicitly.
type Buffer interface {
	Destroyer

	// Visible returns whether the buffer is host visible.
	Visible() bool

	// Bytes returns a slice of length Cap referring to the
	// underlying data, or nil if the buffer is not host visible.
	// The slice is valid for the lifetime of the buffer.
	Bytes() []byte

	// Cap returns the capacity of the buffer in bytes.
	Cap() int64

	// Address returns the buffer's GPU device address.
	// It is resolved lazily on first call and cached; it returns an
	// error if the buffer was not created with UDeviceAddress.
	Address() (uint64, error)
}

// PixelFmt describes the format of a pixel.
type PixelFmt int

// FInternal is the internal format bit. All internal formats have
// this bit set. Client code must not create images using internal
// formats.
const FInternal PixelFmt = 1 << 31

// IsInternal returns whether f is an internal format.
func (f PixelFmt) IsInternal() bool { return f&FInternal == FInternal }

// Pixel formats.
const (
	RGBA8un PixelFmt = iota
	RGBA8n
	RGBA8sRGB
	BGRA8un
	BGRA8sRGB
	RG8un
	RG8n
	R8un
	R8n
	RGBA16f
	RG16f
	R16f
	RGBA32f
	RG32f
	R32f
	D16un
	D32f
	S8ui
	D24unS8ui
	D32fS8ui
)

// Dim3D is a three-dimensional size.
type Dim3D struct {
	Width, Height, Depth int
}

// Off3D is a three-dimensional offset.
type Off3D struct {
	X, Y, Z int
}

// Image is the interface that defines a GPU image.
// Direct access to image memory is not provided; copying data from
// the CPU to an image resource requires a staging buffer.
type Image interface {
	Destroyer

	// NewView creates a new image view.
	// All views created from a given image must be destroyed before
	// the image itself is destroyed.
	NewView(typ ViewType, layer, layers, level, levels int) (ImageView, error)
}

// ViewType is the type of a resource view.
type ViewType int

// View types.
const (
	IView1D ViewType = iota
	IView2D
	IView3D
	IViewCube
	IView1DArray
	IView2DArray
	IViewCubeArray
	IView2DMS
	IView2DMSArray
)

// ImageView is the interface that defines a typed view of an Image
// resource.
type ImageView interface {
	Destroyer
}

// Filter is the type of sampler filters.
type Filter int

// Filters.
const (
	FNearest Filter = iota
	FLinear
	// FNoMipmap forces mip level 0. Only valid as the mip filter.
	FNoMipmap
)

// AddrMode is the type of sampler address modes.
type AddrMode int

// Address modes.
const (
	AWrap AddrMode = iota
	AMirror
	AClamp
)

// Sampler is the interface that defines an image sampler.
type Sampler interface {
	Destroyer
}

// Sampling describes image sampler state.
type Sampling struct {
	Min      Filter
	Mag      Filter
	Mipmap   Filter
	AddrU    AddrMode
	AddrV    AddrMode
	AddrW    AddrMode
	MaxAniso int
	Cmp      CmpFunc
	MinLOD   float32
	MaxLOD   float32
}

// Features describes optional capabilities of the implementation.
type Features struct {
	// TimelineSemaphore reports support for VK_KHR_timeline_semaphore
	// equivalent functionality. It is mandatory: GPU.Open fails if
	// the device lacks it.
	TimelineSemaphore bool
	// BufferDeviceAddress reports support for querying a buffer's
	// GPU address. Optional, opt-in per DeviceDescription.
	BufferDeviceAddress bool
	// DescriptorIndexing reports support for large partially-bound
	// descriptor arrays, required by the bindless descriptor system.
	DescriptorIndexing bool
}

// Limits describes implementation limits.
// These may vary across drivers and devices.
type Limits struct {
	MaxImage1D   int
	MaxImage2D   int
	MaxImageCube int
	MaxImage3D   int
	MaxLayers    int

	MaxDescHeaps      int
	MaxDBuffer        int
	MaxDImage         int
	MaxDConstant      int
	MaxDTexture       int
	MaxDSampler       int
	MaxDBufferRange   int64
	MaxDConstantRange int64

	MaxColorTargets int
	MaxFBSize       [2]int
	MaxFBLayers     int
	MaxPointSize    float32
	MaxViewports    int

	MaxVertexIn   int
	MaxFragmentIn int

	MaxDispatch [3]int

	// MinUniformBufferAlignment is the minimum alignment, in bytes,
	// required for dynamic uniform buffer offsets. The RingBuffer
	// (engine §4.7) rounds allocations up to max(256, this value).
	MinUniformBufferAlignment int64

	// MaxPushConstantSize is the maximum size, in bytes, of the
	// single push-constant range every pipeline in the device
	// shares (§6).
	MaxPushConstantSize int
}
