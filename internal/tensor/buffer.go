// Package tensor provides the fixed-size numeric buffers shared by the
// software and device backends.
package tensor

import (
	"github.com/pkg/errors"
	gtensor "gorgonia.org/tensor"
)

// ErrSize is returned when a host slice does not match a buffer's width.
var ErrSize = errors.New("tensor: size mismatch")

// Buffer is a fixed-size float32 vector with host transfer semantics.
//
// Where the storage lives (host memory or a device region) is hidden behind
// the interface. Write copies len(src) values into the buffer and Read copies
// the buffer into dst; both require the slice to be exactly Len() long.
type Buffer interface {
	Len() int
	Write(src []float32) error
	Read(dst []float32) error
}

// CheckSize returns ErrSize when n differs from the buffer width.
func CheckSize(b Buffer, n int) error {
	if n != b.Len() {
		return errors.Wrapf(ErrSize, "got %d values, buffer holds %d", n, b.Len())
	}
	return nil
}

// Host is a host-resident buffer backed by a dense tensor.
//
// Rows and Cols describe the logical shape: vectors are 1 x n, weight
// matrices are rows x cols in row-major order.
type Host struct {
	dense *gtensor.Dense
	data  []float32
	rows  int
	cols  int
}

// NewHost allocates a zeroed vector of n values.
func NewHost(n int) *Host {
	return NewHostMatrix(1, n)
}

// NewHostMatrix allocates a zeroed rows x cols matrix.
func NewHostMatrix(rows, cols int) *Host {
	data := make([]float32, rows*cols)
	dense := gtensor.New(
		gtensor.WithShape(rows, cols),
		gtensor.WithBacking(data),
	)
	return &Host{
		dense: dense,
		data:  dense.Data().([]float32),
		rows:  rows,
		cols:  cols,
	}
}

// Len returns the number of values.
func (h *Host) Len() int { return len(h.data) }

// Rows returns the logical row count.
func (h *Host) Rows() int { return h.rows }

// Cols returns the logical column count.
func (h *Host) Cols() int { return h.cols }

// Float32s exposes the backing slice. Callers inside a backend use it for
// in-place kernels; it aliases the buffer.
func (h *Host) Float32s() []float32 { return h.data }

// Dense returns the underlying tensor.
func (h *Host) Dense() *gtensor.Dense { return h.dense }

// Write copies src into the buffer.
func (h *Host) Write(src []float32) error {
	if err := CheckSize(h, len(src)); err != nil {
		return err
	}
	copy(h.data, src)
	return nil
}

// Read copies the buffer into dst.
func (h *Host) Read(dst []float32) error {
	if err := CheckSize(h, len(dst)); err != nil {
		return err
	}
	copy(dst, h.data)
	return nil
}

// Zero clears every value.
func (h *Host) Zero() {
	clear(h.data)
}
