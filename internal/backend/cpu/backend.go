// Package cpu implements the software backend: every layer and connection
// operation runs to completion on the calling goroutine, on host-resident
// buffers, before returning.
package cpu

import (
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// Factory builds software layers and connections.
type Factory struct {
	init *nn.Initializer
}

// Option configures a Factory.
type Option func(*Factory)

// WithSeed sets the seed of the weight and bias initializer.
func WithSeed(seed int64) Option {
	return func(f *Factory) {
		f.init = nn.NewInitializer(seed)
	}
}

// NewFactory creates a software factory.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{}
	for _, opt := range opts {
		opt(f)
	}
	if f.init == nil {
		f.init = nn.NewInitializer(nn.DefaultSeed)
	}
	return f
}

// Name returns the backend name.
func (f *Factory) Name() string {
	return "CPU"
}

// NewInputLayer creates an identity layer without cost.
func (f *Factory) NewInputLayer(id, size int) (nn.Layer, error) {
	return f.newLayer(id, size, nn.Identity, nn.NoCost)
}

// NewLayer creates a layer with the given activation and cost.
func (f *Factory) NewLayer(id, size int, act nn.Activation, cost nn.Cost) (nn.Layer, error) {
	return f.newLayer(id, size, act, cost)
}

func (f *Factory) newLayer(id, size int, act nn.Activation, cost nn.Cost) (*Layer, error) {
	if err := nn.ValidateLayer(id, size, act, cost); err != nil {
		return nil, err
	}
	l := &Layer{
		id:     id,
		size:   size,
		act:    act,
		cost:   cost,
		input:  tensor.NewHost(size),
		output: tensor.NewHost(size),
		err:    tensor.NewHost(size),
		signal: tensor.NewHost(size),
	}
	if cost != nn.NoCost {
		l.desired = tensor.NewHost(size)
	}
	return l, nil
}

// NewConnection creates a zero-initialized dstSize x srcSize connection.
func (f *Factory) NewConnection(id, srcSize, dstSize int) (nn.Connection, error) {
	if err := nn.ValidateConnection(id, srcSize, dstSize); err != nil {
		return nil, err
	}
	return &Connection{
		id:         id,
		srcSize:    srcSize,
		dstSize:    dstSize,
		weight:     tensor.NewHostMatrix(dstSize, srcSize),
		bias:       tensor.NewHost(dstSize),
		weightGrad: tensor.NewHostMatrix(dstSize, srcSize),
		biasGrad:   tensor.NewHost(dstSize),
		init:       f.init,
	}, nil
}

// Finish is a no-op: software operations complete before they return.
func (f *Factory) Finish() error {
	return nil
}
