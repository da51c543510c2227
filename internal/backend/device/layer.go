package device

import (
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// Layer is a device layer. Every compute method enqueues one kernel and
// returns without waiting for it.
type Layer struct {
	f    *Factory
	id   int
	size int
	act  nn.Activation
	cost nn.Cost

	input   *Buffer
	output  *Buffer
	desired *Buffer
	err     *Buffer
	signal  *Buffer
}

var _ nn.Layer = (*Layer)(nil)

func (l *Layer) ID() int                   { return l.id }
func (l *Layer) Size() int                 { return l.size }
func (l *Layer) Activation() nn.Activation { return l.act }
func (l *Layer) CostFunc() nn.Cost         { return l.cost }
func (l *Layer) Input() tensor.Buffer      { return l.input }
func (l *Layer) Output() tensor.Buffer     { return l.output }
func (l *Layer) Error() tensor.Buffer      { return l.err }
func (l *Layer) Signal() tensor.Buffer     { return l.signal }

// Desired returns the target buffer, or nil when the layer has no cost.
func (l *Layer) Desired() tensor.Buffer {
	if l.desired == nil {
		return nil
	}
	return l.desired
}

// Activate enqueues activate_identity or activate_sigmoid.
func (l *Layer) Activate() error {
	name := KernelActivateIdentity
	if l.act == nn.Sigmoid {
		name = KernelActivateSigmoid
	}
	return l.f.launch(name, Launch{
		Op:   OpActivate,
		Args: []Memory{l.input.mem, l.output.mem},
		Rows: l.size,
		Act:  l.act,
	})
}

// SetDesiredOutput enqueues an upload of target.
func (l *Layer) SetDesiredOutput(target []float32) error {
	if l.desired == nil {
		return nn.ConfigErrorf("layer %d has no cost, cannot hold a desired output", l.id)
	}
	return l.desired.Write(target)
}

// Cost reads the output back, which drains the queue, and evaluates the
// cost on the host.
func (l *Layer) Cost(target []float32) (float32, error) {
	if l.cost == nn.NoCost {
		return 0, nn.ConfigErrorf("layer %d has no cost", l.id)
	}
	if err := tensor.CheckSize(l.output, len(target)); err != nil {
		return 0, err
	}
	out := make([]float32, l.size)
	if err := l.output.Read(out); err != nil {
		return 0, err
	}
	return l.cost.Eval(out, target), nil
}

// SeedError enqueues seed_cross_entropy or seed_quadratic. The
// cross-entropy seed runs with the identity derivative: the sigmoid
// derivative is already folded into o - t.
func (l *Layer) SeedError() error {
	if l.desired == nil {
		return nn.ConfigErrorf("layer %d has no cost to seed an error from", l.id)
	}
	name, act := KernelSeedCrossEntropy, nn.Identity
	if l.cost == nn.Quadratic {
		name, act = KernelSeedQuadratic, l.act
	}
	return l.f.launch(name, Launch{
		Op:   OpSeed,
		Args: []Memory{l.output.mem, l.desired.mem, l.err.mem},
		Rows: l.size,
		Act:  act,
	})
}

// Backprop enqueues derive_identity or derive_sigmoid.
func (l *Layer) Backprop() error {
	name := KernelDeriveIdentity
	if l.act == nn.Sigmoid {
		name = KernelDeriveSigmoid
	}
	return l.f.launch(name, Launch{
		Op:   OpDerive,
		Args: []Memory{l.signal.mem, l.output.mem, l.err.mem},
		Rows: l.size,
		Act:  l.act,
	})
}

// Release enqueues the release of every buffer.
func (l *Layer) Release() error {
	var first error
	for _, b := range []*Buffer{l.input, l.output, l.desired, l.err, l.signal} {
		if err := b.release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
