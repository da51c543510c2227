package nn

import (
	"github.com/chewxy/math32"
)

// Cost tags the loss a layer evaluates against its desired output.
type Cost int

// Supported costs. CrossEntropy pairs with Sigmoid only.
const (
	NoCost Cost = iota
	CrossEntropy
	Quadratic
)

// Epsilon bounds probabilities away from 0 and 1 before taking logarithms.
const Epsilon float32 = 1e-7

// String returns the cost name.
func (c Cost) String() string {
	switch c {
	case NoCost:
		return "none"
	case CrossEntropy:
		return "cross_entropy"
	case Quadratic:
		return "quadratic"
	default:
		return "unknown"
	}
}

// Valid reports whether c is a known cost.
func (c Cost) Valid() bool {
	return c == NoCost || c == CrossEntropy || c == Quadratic
}

// ParseCost maps a cost name as printed by String back to its tag.
func ParseCost(name string) (Cost, error) {
	for _, c := range []Cost{NoCost, CrossEntropy, Quadratic} {
		if c.String() == name {
			return c, nil
		}
	}
	return NoCost, ConfigErrorf("unknown cost %q", name)
}

// Eval returns the scalar cost of out against target.
//
//	cross-entropy: -Σ [t·ln(o) + (1-t)·ln(1-o)], o clamped to [ε, 1-ε]
//	quadratic:     ½ Σ (o-t)²
func (c Cost) Eval(out, target []float32) float32 {
	var sum float32
	switch c {
	case CrossEntropy:
		for i, o := range out {
			o = clampProb(o)
			t := target[i]
			sum -= t*math32.Log(o) + (1-t)*math32.Log(1-o)
		}
	case Quadratic:
		for i, o := range out {
			d := o - target[i]
			sum += d * d
		}
		sum *= 0.5
	}
	return sum
}

// Seed writes the output-layer error dL/dx into dst.
//
// With sigmoid and cross-entropy the derivative collapses to o - t and the
// activation derivative must not be applied again. The quadratic cost keeps
// the explicit (o - t) ⊙ f'(o) form.
func (c Cost) Seed(act Activation, out, desired, dst []float32) {
	for i, o := range out {
		dst[i] = o - desired[i]
	}
	if c == Quadratic {
		act.Derive(dst, out, dst)
	}
}

func clampProb(p float32) float32 {
	switch {
	case p < Epsilon:
		return Epsilon
	case p > 1-Epsilon:
		return 1 - Epsilon
	default:
		return p
	}
}
