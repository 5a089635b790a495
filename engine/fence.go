// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"sync"

	"github.com/ashlarengine/runtime/driver"
)

// Fence is a CPU/GPU timeline synchronization point: one
// driver.Semaphore plus an observed counter guarded by a condition
// variable. Unlike a raw OS semaphore wait, CPU waiters block on the
// Cond; Signal is called by the goroutine each Fence.Commit spawns to
// drain that submission's completion channel, so a Wait returns as
// soon as the draining goroutine observes completion rather than
// polling the GPU timeline directly.
type Fence struct {
	sem driver.Semaphore

	mu       sync.Mutex
	cond     *sync.Cond
	observed uint64
}

// NewFence creates a Fence backed by a new GPU timeline semaphore
// initialized to zero.
func NewFence(gpu driver.GPU) (*Fence, error) {
	sem, err := gpu.NewSemaphore(0)
	if err != nil {
		return nil, err
	}
	f := &Fence{sem: sem}
	f.cond = sync.NewCond(&f.mu)
	return f, nil
}

// Destroy releases the underlying semaphore.
func (f *Fence) Destroy() { f.sem.Destroy() }

// Sem returns the underlying driver.Semaphore, for use as a
// GPU.Commit signal or wait target.
func (f *Fence) Sem() driver.Semaphore { return f.sem }

// Signal records that the GPU timeline has reached value, and wakes
// any goroutines blocked in Wait. It is safe to call with a value
// no greater than the one already observed.
func (f *Fence) Signal(value uint64) {
	f.mu.Lock()
	if value > f.observed {
		f.observed = value
	}
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Value returns the most recently observed timeline value. It may
// lag the GPU's true value if no Signal has been delivered yet for
// the most recent submission.
func (f *Fence) Value() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observed
}

// Wait blocks the calling goroutine until the fence's observed
// value reaches at least value.
func (f *Fence) Wait(value uint64) {
	f.mu.Lock()
	for f.observed < value {
		f.cond.Wait()
	}
	f.mu.Unlock()
}

// Commit submits cb to gpu, signaling this fence to signalValue on
// completion, and spawns a goroutine that delivers that signal once
// the GPU reports the submission finished.
func (f *Fence) Commit(gpu driver.GPU, cb []driver.CmdBuffer, signalValue uint64) error {
	ch := make(chan error, 1)
	if err := gpu.Commit(cb, ch, &driver.SemaphoreSignal{Sem: f.sem, Value: signalValue}); err != nil {
		return err
	}
	go func() {
		if err := <-ch; err == nil {
			f.Signal(signalValue)
		}
	}()
	return nil
}
