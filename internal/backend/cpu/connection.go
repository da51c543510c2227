package cpu

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
	"gorgonia.org/vecf32"

	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// Connection is a software connection. Weights are row-major with one row
// per destination unit.
type Connection struct {
	id      int
	srcSize int
	dstSize int

	weight     *tensor.Host
	bias       *tensor.Host
	weightGrad *tensor.Host
	biasGrad   *tensor.Host

	src  *Layer
	dst  *Layer
	init *nn.Initializer
}

var _ nn.Connection = (*Connection)(nil)

func (c *Connection) ID() int                   { return c.id }
func (c *Connection) SrcSize() int              { return c.srcSize }
func (c *Connection) DstSize() int              { return c.dstSize }
func (c *Connection) Weight() tensor.Buffer     { return c.weight }
func (c *Connection) Bias() tensor.Buffer       { return c.bias }
func (c *Connection) WeightGrad() tensor.Buffer { return c.weightGrad }
func (c *Connection) BiasGrad() tensor.Buffer   { return c.biasGrad }

// Bind attaches the source and destination layers.
func (c *Connection) Bind(src, dst nn.Layer) error {
	s, ok1 := src.(*Layer)
	d, ok2 := dst.(*Layer)
	if !ok1 || !ok2 {
		return nn.ConfigErrorf("connection %d: layers %d and %d do not belong to the CPU backend",
			c.id, src.ID(), dst.ID())
	}
	c.src, c.dst = s, d
	return nil
}

// RandomizeWeight fills the weight matrix from the factory initializer.
func (c *Connection) RandomizeWeight() error {
	c.init.Weights(c.weight.Float32s(), c.srcSize)
	return nil
}

// RandomizeBias fills the bias vector from the factory initializer.
func (c *Connection) RandomizeBias() error {
	c.init.Biases(c.bias.Float32s())
	return nil
}

// Forward computes dst.Input = W·src.Output + b.
func (c *Connection) Forward() error {
	if err := c.bound(); err != nil {
		return err
	}
	y := c.dst.input.Float32s()
	copy(y, c.bias.Float32s())
	blas32.Gemv(blas.NoTrans, 1, matrix(c.weight), vector(c.src.output.Float32s()), 1, vector(y))
	return nil
}

// Backward accumulates gradients from dst.Error and writes src.Signal.
func (c *Connection) Backward() error {
	if err := c.bound(); err != nil {
		return err
	}
	e := c.dst.err.Float32s()
	blas32.Ger(1, vector(e), vector(c.src.output.Float32s()), matrix(c.weightGrad))
	vecf32.Add(c.biasGrad.Float32s(), e)
	blas32.Gemv(blas.Trans, 1, matrix(c.weight), vector(e), 0, vector(c.src.signal.Float32s()))
	return nil
}

// ApplyGradient applies the averaged step and clears the accumulators.
func (c *Connection) ApplyGradient(rate float32, batchSize int) error {
	if batchSize < 1 {
		return errors.Errorf("connection %d: batch size %d must be positive", c.id, batchSize)
	}
	k := -rate / float32(batchSize)
	blas32.Axpy(k, vector(c.weightGrad.Float32s()), vector(c.weight.Float32s()))
	blas32.Axpy(k, vector(c.biasGrad.Float32s()), vector(c.bias.Float32s()))
	c.weightGrad.Zero()
	c.biasGrad.Zero()
	return nil
}

// Release drops the parameter buffers.
func (c *Connection) Release() error {
	c.weight, c.bias, c.weightGrad, c.biasGrad = nil, nil, nil, nil
	c.src, c.dst = nil, nil
	return nil
}

func (c *Connection) bound() error {
	if c.src == nil || c.dst == nil {
		return errors.Errorf("connection %d is not bound to layers", c.id)
	}
	return nil
}

func vector(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}

func matrix(h *tensor.Host) blas32.General {
	return blas32.General{
		Rows:   h.Rows(),
		Cols:   h.Cols(),
		Stride: h.Cols(),
		Data:   h.Float32s(),
	}
}
