package cpu

import (
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// Layer is a software layer with host buffers.
type Layer struct {
	id   int
	size int
	act  nn.Activation
	cost nn.Cost

	input   *tensor.Host
	output  *tensor.Host
	desired *tensor.Host
	err     *tensor.Host
	signal  *tensor.Host
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

// Activate computes Output = f(Input).
func (l *Layer) Activate() error {
	l.act.Apply(l.input.Float32s(), l.output.Float32s())
	return nil
}

// SetDesiredOutput stores target for SeedError.
func (l *Layer) SetDesiredOutput(target []float32) error {
	if l.desired == nil {
		return nn.ConfigErrorf("layer %d has no cost, cannot hold a desired output", l.id)
	}
	return l.desired.Write(target)
}

// Cost evaluates the layer cost of the current output against target.
func (l *Layer) Cost(target []float32) (float32, error) {
	if l.cost == nn.NoCost {
		return 0, nn.ConfigErrorf("layer %d has no cost", l.id)
	}
	if err := tensor.CheckSize(l.output, len(target)); err != nil {
		return 0, err
	}
	return l.cost.Eval(l.output.Float32s(), target), nil
}

// SeedError writes the output error from Output and Desired.
func (l *Layer) SeedError() error {
	if l.desired == nil {
		return nn.ConfigErrorf("layer %d has no cost to seed an error from", l.id)
	}
	l.cost.Seed(l.act, l.output.Float32s(), l.desired.Float32s(), l.err.Float32s())
	return nil
}

// Backprop writes Error = Signal ⊙ f'(Output).
func (l *Layer) Backprop() error {
	l.act.Derive(l.signal.Float32s(), l.output.Float32s(), l.err.Float32s())
	return nil
}

// Release drops the buffers.
func (l *Layer) Release() error {
	l.input, l.output, l.desired, l.err, l.signal = nil, nil, nil, nil, nil
	return nil
}
