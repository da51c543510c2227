package nn

import (
	"github.com/chewxy/math32"
)

// Activation tags the elementwise function a layer applies to its input.
type Activation int

// Supported activations. The input layer always uses Identity.
const (
	Identity Activation = iota
	Sigmoid
)

// String returns the activation name used in kernel names and logs.
func (a Activation) String() string {
	switch a {
	case Identity:
		return "identity"
	case Sigmoid:
		return "sigmoid"
	default:
		return "unknown"
	}
}

// Valid reports whether a is a known activation.
func (a Activation) Valid() bool {
	return a == Identity || a == Sigmoid
}

// SigmoidOf computes σ(x) = 1 / (1 + exp(-x)).
func SigmoidOf(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// Apply writes f(in) into out. The switch runs once per call, not per element.
func (a Activation) Apply(in, out []float32) {
	switch a {
	case Sigmoid:
		for i, x := range in {
			out[i] = SigmoidOf(x)
		}
	default:
		copy(out, in)
	}
}

// Derive writes signal ⊙ f'(x) into dst, where f' is evaluated from the
// stored output y = f(x): σ'(x) = y(1-y), identity' = 1.
func (a Activation) Derive(signal, out, dst []float32) {
	switch a {
	case Sigmoid:
		for i, y := range out {
			dst[i] = signal[i] * y * (1 - y)
		}
	default:
		copy(dst, signal)
	}
}
