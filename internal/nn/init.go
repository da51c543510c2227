package nn

import (
	"github.com/chewxy/math32"
	rng "github.com/leesper/go_rng"
)

// DefaultSeed is the seed used when a factory is not given one.
const DefaultSeed int64 = 987654

// Initializer fills weights and biases with seeded Gaussian noise.
//
// Weights are drawn from N(0, 1/fanIn) so that pre-activations of a fresh
// network stay in the sigmoid's linear range; biases from N(0, 1). Zero is
// never used: identical rows would receive identical updates.
type Initializer struct {
	gauss *rng.GaussianGenerator
}

// NewInitializer creates an initializer with a fixed seed.
func NewInitializer(seed int64) *Initializer {
	return &Initializer{gauss: rng.NewGaussianGenerator(seed)}
}

// Weights fills dst for a matrix with fanIn columns.
func (in *Initializer) Weights(dst []float32, fanIn int) {
	stddev := 1 / math32.Sqrt(float32(fanIn))
	in.fill(dst, float64(stddev))
}

// Biases fills dst with unit-variance values.
func (in *Initializer) Biases(dst []float32) {
	in.fill(dst, 1)
}

func (in *Initializer) fill(dst []float32, stddev float64) {
	for i := range dst {
		v := float32(in.gauss.Gaussian(0, stddev))
		for v == 0 {
			v = float32(in.gauss.Gaussian(0, stddev))
		}
		dst[i] = v
	}
}
