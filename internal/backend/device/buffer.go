package device

import (
	"slices"

	"github.com/born-ml/bpnet/internal/tensor"
)

// Buffer is a device-resident vector. Transfers go through the queue, so
// they are ordered with respect to the kernels around them.
type Buffer struct {
	f   *Factory
	mem Memory
	n   int
}

var _ tensor.Buffer = (*Buffer)(nil)

// Len returns the number of values.
func (b *Buffer) Len() int { return b.n }

// Memory returns the device region backing the buffer.
func (b *Buffer) Memory() Memory { return b.mem }

// Write enqueues an upload of src. src is copied before Write returns, so
// the caller may reuse it immediately.
func (b *Buffer) Write(src []float32) error {
	if err := tensor.CheckSize(b, len(src)); err != nil {
		return err
	}
	staged := slices.Clone(src)
	mem := b.mem
	return b.f.queue.Enqueue(nil, "write", func() error {
		return b.f.exec.Upload(mem, staged)
	})
}

// Read enqueues a download into dst and blocks until it, and everything
// issued before it, has completed.
func (b *Buffer) Read(dst []float32) error {
	if err := tensor.CheckSize(b, len(dst)); err != nil {
		return err
	}
	mem := b.mem
	err := b.f.queue.Enqueue(nil, "read", func() error {
		return b.f.exec.Download(mem, dst)
	})
	if err != nil {
		return err
	}
	return b.f.queue.Finish()
}

func (b *Buffer) release() error {
	if b == nil || b.mem == nil {
		return nil
	}
	mem := b.mem
	b.mem = nil
	return b.f.queue.Enqueue(nil, "free", func() error {
		return b.f.exec.Free(mem)
	})
}
