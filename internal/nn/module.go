// Package nn implements the backprop engine core: the Layer and Connection
// contracts shared by every backend, the activation and cost rules, and the
// Network that drives a linear chain of layers through pipelined forward and
// backward stages.
//
// A network is assembled from a Factory, which binds layers and connections
// to one execution strategy:
//
//	f := cpu.NewFactory(cpu.WithSeed(987654))
//	net := nn.NewNetwork(f)
//	in, _ := f.NewInputLayer(0, 784)
//	out, _ := f.NewLayer(1, 10, nn.Sigmoid, nn.CrossEntropy)
//	conn, _ := f.NewConnection(0, 784, 10)
//	_ = net.AddLayer(in)
//	_ = net.AddLayer(out)
//	_ = net.AddConn(conn, 0, 1)
package nn

import (
	"github.com/born-ml/bpnet/internal/tensor"
)

// Layer is one stage of the chain.
//
// Input is the pre-activation accumulator filled by the incoming connection
// (or by the driver for the input layer). Output holds f(Input) after the
// most recent Activate. Error is dL/dInput for the current example and
// Signal is the raw Wᵗ·e received from the outgoing connection. Desired is
// nil unless the layer carries a cost.
type Layer interface {
	ID() int
	Size() int
	Activation() Activation
	CostFunc() Cost

	Input() tensor.Buffer
	Output() tensor.Buffer
	Desired() tensor.Buffer
	Error() tensor.Buffer
	Signal() tensor.Buffer

	// Activate computes Output = f(Input).
	Activate() error

	// SetDesiredOutput stores the target used by SeedError.
	SetDesiredOutput(target []float32) error

	// Cost evaluates the layer's cost of the current Output against target.
	Cost(target []float32) (float32, error)

	// SeedError writes the output-layer error from Output and Desired.
	SeedError() error

	// Backprop writes Error = Signal ⊙ f'(Output).
	Backprop() error

	Release() error
}

// Connection is the weighted affine map joining layer s to layer s+1.
//
// Weight is row-major with DstSize rows and SrcSize columns. WeightGrad and
// BiasGrad accumulate over a mini-batch and are reset by ApplyGradient only.
type Connection interface {
	ID() int
	SrcSize() int
	DstSize() int

	// Bind attaches the connection to its source and destination layers.
	// The network calls it once from AddConn.
	Bind(src, dst Layer) error

	Weight() tensor.Buffer
	Bias() tensor.Buffer
	WeightGrad() tensor.Buffer
	BiasGrad() tensor.Buffer

	RandomizeWeight() error
	RandomizeBias() error

	// Forward computes dst.Input = W·src.Output + b.
	Forward() error

	// Backward reads dst.Error, accumulates dW += e ⊗ src.Output and
	// db += e, and writes src.Signal = Wᵗ·e.
	Backward() error

	// ApplyGradient applies W -= rate/batchSize·dW, b -= rate/batchSize·db
	// and zeroes both accumulators.
	ApplyGradient(rate float32, batchSize int) error

	Release() error
}

// Factory constructs layers and connections bound to one backend.
type Factory interface {
	Name() string
	NewInputLayer(id, size int) (Layer, error)
	NewLayer(id, size int, act Activation, cost Cost) (Layer, error)
	NewConnection(id, srcSize, dstSize int) (Connection, error)

	// Finish blocks until every operation issued so far has completed and
	// reports the first backend failure, if any.
	Finish() error
}

// ValidateLayer checks the construction arguments shared by all factories.
func ValidateLayer(id, size int, act Activation, cost Cost) error {
	if id < 0 {
		return ConfigErrorf("layer id %d is negative", id)
	}
	if size <= 0 {
		return ConfigErrorf("layer %d: size %d must be positive", id, size)
	}
	if !act.Valid() {
		return ConfigErrorf("layer %d: unknown activation %d", id, int(act))
	}
	if !cost.Valid() {
		return ConfigErrorf("layer %d: unknown cost %d", id, int(cost))
	}
	if cost == CrossEntropy && act != Sigmoid {
		return ConfigErrorf("layer %d: cross-entropy cost requires sigmoid activation, got %s", id, act)
	}
	return nil
}

// ValidateConnection checks the construction arguments of a connection.
func ValidateConnection(id, srcSize, dstSize int) error {
	if id < 0 {
		return ConfigErrorf("connection id %d is negative", id)
	}
	if srcSize <= 0 || dstSize <= 0 {
		return ConfigErrorf("connection %d: sizes %dx%d must be positive", id, dstSize, srcSize)
	}
	return nil
}
