// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"fmt"
	"sync"

	"github.com/ashlarengine/runtime/driver"
)

// uploadState is a resource upload's position in its lifecycle.
type uploadState int

// Upload states.
const (
	Requested uploadState = iota
	Uploading
	Done
)

// resourceUpload tracks one in-flight or pending upload request.
type resourceUpload struct {
	area       int
	areaOff    int64
	size       int64
	transferID uint64
	state      uploadState

	// set only for image uploads
	isImage  bool
	imgSize  driver.Dim3D
}

// stagingArea is one fixed-size host-visible buffer loader code
// copies into before a transfer-queue command buffer copies its
// contents onward to a device resource.
type stagingArea struct {
	buf   driver.Buffer
	size  int64
	used  int64
	inUse bool
}

// Streamer is the asynchronous CPU-to-GPU upload engine: callers
// stage data with Upload, which returns immediately, and the
// transfer actually happens the next time Update runs on the
// rendering thread. IsUploaded reports whether a previously
// requested transfer has completed on the GPU timeline.
//
// Requests and staging-area bookkeeping are guarded by a mutex since
// Upload is meant to be called from asset-loading goroutines while
// Update and IsUploaded run on the render thread.
type Streamer struct {
	dev  *Device
	pool *WorkPool[*TransferWork]
	done *Fence

	mu              sync.Mutex
	areas           []stagingArea
	cpuMemoryUsage  int64
	currentTransfer uint64
	transferBatch   uint64

	bufferUploads map[Handle[bufferRes]]*resourceUpload
	imageUploads  map[Handle[imageRes]]*resourceUpload
}

// NewStreamer creates a Streamer with one staging area of
// cfg.StagingAreaSize bytes, growing up to cfg.MaxStagingArea of them
// on demand.
func NewStreamer(dev *Device) (*Streamer, error) {
	pool, err := newTransferWorkPool(dev, driver.Transfer)
	if err != nil {
		return nil, err
	}
	fence, err := NewFence(dev.GPU())
	if err != nil {
		pool.Destroy()
		return nil, err
	}
	s := &Streamer{
		dev:           dev,
		pool:          pool,
		done:          fence,
		bufferUploads: make(map[Handle[bufferRes]]*resourceUpload),
		imageUploads:  make(map[Handle[imageRes]]*resourceUpload),
	}
	if err := s.growStaging(); err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// Destroy releases the streamer's work pool, fence and staging areas.
func (s *Streamer) Destroy() {
	s.pool.Destroy()
	s.done.Destroy()
	for _, a := range s.areas {
		a.buf.Destroy()
	}
}

func (s *Streamer) growStaging() error {
	if len(s.areas) >= cfg.MaxStagingArea {
		return fmt.Errorf("engine: streamer: staging area limit (%d) reached", cfg.MaxStagingArea)
	}
	buf, err := s.dev.GPU().NewBuffer(cfg.StagingAreaSize, true, driver.UShaderRead)
	if err != nil {
		return err
	}
	s.areas = append(s.areas, stagingArea{buf: buf, size: cfg.StagingAreaSize})
	s.cpuMemoryUsage += cfg.StagingAreaSize
	return nil
}

// findArea returns a staging area with at least size free bytes,
// growing a new one if every existing area is either full or in use
// by an unfinished transfer batch. It returns ok == false if the
// staging-area limit is reached and none is currently free — the
// caller is expected to retry after the next Update/reclaim cycle
// (§[FULL] "staging exhaustion is deferred, not fatal").
func (s *Streamer) findArea(size int64) (idx int, off int64, ok bool) {
	for i := range s.areas {
		a := &s.areas[i]
		if a.inUse {
			continue
		}
		if a.used+size <= a.size {
			off = a.used
			a.used += size
			return i, off, true
		}
	}
	if err := s.growStaging(); err != nil {
		return 0, 0, false
	}
	i := len(s.areas) - 1
	a := &s.areas[i]
	a.used = size
	return i, 0, true
}

// UploadBuffer stages data for copy into dst the next time Update
// runs. At most one upload is active per destination at a time
// (§4.9): a request for a dst that already has a Requested or
// Uploading entry is ignored until that one reaches Done. It
// returns an error if no staging area is available; the caller
// should retry on a later frame once in-flight uploads drain.
func (s *Streamer) UploadBuffer(dst Handle[bufferRes], data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.bufferUploads[dst]; ok && u.state != Done {
		return nil
	}

	idx, off, ok := s.findArea(int64(len(data)))
	if !ok {
		return fmt.Errorf("engine: streamer: no staging area available for %d bytes", len(data))
	}
	copy(s.areas[idx].buf.Bytes()[off:], data)
	s.bufferUploads[dst] = &resourceUpload{
		area:    idx,
		areaOff: off,
		size:    int64(len(data)),
		state:   Requested,
	}
	return nil
}

// UploadImage stages data for copy into dst's layer/level 0 the next
// time Update runs. At most one upload is active per destination at
// a time (§4.9): a request for a dst that already has a Requested or
// Uploading entry is ignored until that one reaches Done.
func (s *Streamer) UploadImage(dst Handle[imageRes], data []byte, size driver.Dim3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.imageUploads[dst]; ok && u.state != Done {
		return nil
	}

	idx, off, ok := s.findArea(int64(len(data)))
	if !ok {
		return fmt.Errorf("engine: streamer: no staging area available for %d bytes", len(data))
	}
	copy(s.areas[idx].buf.Bytes()[off:], data)
	s.imageUploads[dst] = &resourceUpload{
		area:    idx,
		areaOff: off,
		size:    int64(len(data)),
		state:   Requested,
		isImage: true,
		imgSize: size,
	}
	return nil
}

// IsUploaded reports whether a previously requested buffer upload
// has completed on the GPU timeline. It also opportunistically
// reclaims any uploads whose transfer has completed.
func (s *Streamer) IsUploaded(dst Handle[bufferRes]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaim()
	u, ok := s.bufferUploads[dst]
	return ok && u.state == Done
}

// IsImageUploaded reports whether a previously requested image
// upload has completed on the GPU timeline.
func (s *Streamer) IsImageUploaded(dst Handle[imageRes]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reclaim()
	u, ok := s.imageUploads[dst]
	return ok && u.state == Done
}

// reclaim marks every Uploading entry whose transfer has completed
// as Done, and frees the staging areas they occupied. Callers must
// hold s.mu.
func (s *Streamer) reclaim() {
	observed := s.done.Value()
	reclaimArea := func(u *resourceUpload) {
		if u.state != Uploading || u.transferID > observed {
			return
		}
		u.state = Done
		s.areas[u.area].inUse = false
		s.areas[u.area].used = 0
	}
	for _, u := range s.bufferUploads {
		reclaimArea(u)
	}
	for _, u := range s.imageUploads {
		reclaimArea(u)
	}
}

// Update records and commits a transfer-queue command buffer copying
// every Requested upload into its destination resource, then marks
// them Uploading against the batch's transfer id. It is meant to be
// called once per frame from the render thread.
func (s *Streamer) Update() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaim()

	type pending struct {
		buf *resourceUpload
		hb  Handle[bufferRes]
		img *resourceUpload
		hi  Handle[imageRes]
	}
	var batch []pending
	areasTouched := make(map[int]bool)

	for h, u := range s.bufferUploads {
		if u.state != Requested {
			continue
		}
		batch = append(batch, pending{buf: u, hb: h})
		areasTouched[u.area] = true
	}
	for h, u := range s.imageUploads {
		if u.state != Requested {
			continue
		}
		batch = append(batch, pending{img: u, hi: h})
		areasTouched[u.area] = true
	}
	if len(batch) == 0 {
		return nil
	}

	w := s.pool.Acquire()
	if err := w.Begin(); err != nil {
		s.pool.Release(w)
		return err
	}

	s.transferBatch++
	id := s.transferBatch

	for _, p := range batch {
		if p.buf != nil {
			area := s.areas[p.buf.area]
			w.TransitionBuffer(p.hb, UsageTransferDst)
			if br, ok := s.dev.GetBuffer(p.hb); ok {
				w.cb.CopyBuffer(&driver.BufferCopy{
					From:    area.buf,
					FromOff: p.buf.areaOff,
					To:      br.buf,
					ToOff:   0,
					Size:    p.buf.size,
				})
			}
			p.buf.state = Uploading
			p.buf.transferID = id
		} else {
			area := s.areas[p.img.area]
			w.TransitionImage(p.hi, UsageTransferDst)
			if ir, ok := s.dev.GetImage(p.hi); ok {
				w.cb.CopyBufToImg(&driver.BufImgCopy{
					Buf:    area.buf,
					BufOff: p.img.areaOff,
					Img:    ir.img,
					Size:   p.img.imgSize,
				})
			}
			p.img.state = Uploading
			p.img.transferID = id
		}
	}

	for a := range areasTouched {
		s.areas[a].inUse = true
	}

	if err := w.End(); err != nil {
		s.pool.Release(w)
		return err
	}
	if err := s.done.Commit(s.dev.GPU(), []driver.CmdBuffer{w.CmdBuffer()}, id); err != nil {
		s.pool.Release(w)
		return err
	}
	s.pool.Release(w)
	return nil
}
