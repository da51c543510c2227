package device

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// Connection is a device connection. Parameters and accumulators live in
// device memory; Backward issues two kernels, every other op one.
type Connection struct {
	f       *Factory
	id      int
	srcSize int
	dstSize int

	weight     *Buffer
	bias       *Buffer
	weightGrad *Buffer
	biasGrad   *Buffer

	src *Layer
	dst *Layer
}

var _ nn.Connection = (*Connection)(nil)

func (c *Connection) ID() int                   { return c.id }
func (c *Connection) SrcSize() int              { return c.srcSize }
func (c *Connection) DstSize() int              { return c.dstSize }
func (c *Connection) Weight() tensor.Buffer     { return c.weight }
func (c *Connection) Bias() tensor.Buffer       { return c.bias }
func (c *Connection) WeightGrad() tensor.Buffer { return c.weightGrad }
func (c *Connection) BiasGrad() tensor.Buffer   { return c.biasGrad }

// Bind attaches the source and destination layers. Both must come from the
// same factory.
func (c *Connection) Bind(src, dst nn.Layer) error {
	s, ok1 := src.(*Layer)
	d, ok2 := dst.(*Layer)
	if !ok1 || !ok2 || s.f != c.f || d.f != c.f {
		return nn.ConfigErrorf("connection %d: layers %d and %d do not belong to the same device factory",
			c.id, src.ID(), dst.ID())
	}
	c.src, c.dst = s, d
	return nil
}

// RandomizeWeight generates weights on the host and uploads them.
func (c *Connection) RandomizeWeight() error {
	w := make([]float32, c.weight.Len())
	c.f.init.Weights(w, c.srcSize)
	return c.weight.Write(w)
}

// RandomizeBias generates biases on the host and uploads them.
func (c *Connection) RandomizeBias() error {
	b := make([]float32, c.bias.Len())
	c.f.init.Biases(b)
	return c.bias.Write(b)
}

// Forward enqueues conn_forward.
func (c *Connection) Forward() error {
	if err := c.bound(); err != nil {
		return err
	}
	return c.f.launch(KernelConnForward, Launch{
		Op:   OpForward,
		Args: []Memory{c.weight.mem, c.bias.mem, c.src.output.mem, c.dst.input.mem},
		Rows: c.dstSize,
		Cols: c.srcSize,
	})
}

// Backward enqueues conn_backward_grad then conn_backward_prop.
func (c *Connection) Backward() error {
	if err := c.bound(); err != nil {
		return err
	}
	err := c.f.launch(KernelBackwardGrad, Launch{
		Op:   OpBackwardGrad,
		Args: []Memory{c.dst.err.mem, c.src.output.mem, c.weightGrad.mem, c.biasGrad.mem},
		Rows: c.dstSize,
		Cols: c.srcSize,
	})
	if err != nil {
		return err
	}
	return c.f.launch(KernelBackwardProp, Launch{
		Op:   OpBackwardProp,
		Args: []Memory{c.weight.mem, c.dst.err.mem, c.src.signal.mem},
		Rows: c.dstSize,
		Cols: c.srcSize,
	})
}

// ApplyGradient enqueues conn_apply.
func (c *Connection) ApplyGradient(rate float32, batchSize int) error {
	if batchSize < 1 {
		return errors.Errorf("connection %d: batch size %d must be positive", c.id, batchSize)
	}
	return c.f.launch(KernelConnApply, Launch{
		Op:    OpApply,
		Args:  []Memory{c.weight.mem, c.weightGrad.mem, c.bias.mem, c.biasGrad.mem},
		Rows:  c.dstSize,
		Cols:  c.srcSize,
		Scale: rate / float32(batchSize),
	})
}

// Release enqueues the release of every buffer.
func (c *Connection) Release() error {
	var first error
	for _, b := range []*Buffer{c.weight, c.bias, c.weightGrad, c.biasGrad} {
		if err := b.release(); err != nil && first == nil {
			first = err
		}
	}
	c.src, c.dst = nil, nil
	return first
}

func (c *Connection) bound() error {
	if c.src == nil || c.dst == nil {
		return errors.Errorf("connection %d is not bound to layers", c.id)
	}
	return nil
}
