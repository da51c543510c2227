//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// maxPoolSize caps the idle buffers kept per byte size.
const maxPoolSize = 16

// storageUsage is the usage of every region handed out by the executor.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// BufferPool recycles storage buffers by exact byte size. A network
// allocates the same few shapes over and over, so exact matching is enough.
type BufferPool struct {
	device *wgpu.Device
	idle   map[uint64][]*wgpu.Buffer
	mu     sync.Mutex

	allocated uint64
	released  uint64
	hits      uint64
	misses    uint64
}

// NewBufferPool creates a new buffer pool for the given device.
func NewBufferPool(dev *wgpu.Device) *BufferPool {
	return &BufferPool{
		device: dev,
		idle:   make(map[uint64][]*wgpu.Buffer),
	}
}

// Acquire returns an idle buffer of size bytes or creates one. A recycled
// buffer keeps its previous contents.
func (p *BufferPool) Acquire(size uint64) (buf *wgpu.Buffer, recycled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if list := p.idle[size]; len(list) > 0 {
		buf = list[len(list)-1]
		p.idle[size] = list[:len(list)-1]
		p.hits++
		return buf, true
	}
	p.misses++
	p.allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	}), false
}

// Release returns a buffer to the pool, or destroys it when the pool for
// its size is full.
func (p *BufferPool) Release(buf *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released++
	if len(p.idle[size]) >= maxPoolSize {
		buf.Release()
		return
	}
	p.idle[size] = append(p.idle[size], buf)
}

// Clear releases all pooled buffers.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for size, list := range p.idle {
		for _, buf := range list {
			buf.Release()
		}
		delete(p.idle, size)
	}
}

// Stats returns allocated, released, hit and miss counts plus the number of
// idle buffers.
func (p *BufferPool) Stats() (allocated, released, hits, misses uint64, idle int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, list := range p.idle {
		idle += len(list)
	}
	return p.allocated, p.released, p.hits, p.misses, idle
}
