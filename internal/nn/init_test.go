package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/bpnet/internal/nn"
)

func TestInitializerDeterministic(t *testing.T) {
	a := make([]float32, 64)
	b := make([]float32, 64)
	nn.NewInitializer(11).Weights(a, 16)
	nn.NewInitializer(11).Weights(b, 16)
	assert.Equal(t, a, b)

	nn.NewInitializer(12).Weights(b, 16)
	assert.NotEqual(t, a, b)
}

func TestInitializerScale(t *testing.T) {
	const n = 20000
	in := nn.NewInitializer(nn.DefaultSeed)

	w := make([]float32, n)
	in.Weights(w, 100)
	mean, std := meanStd(w)
	assert.InDelta(t, 0, mean, 0.01)
	assert.InDelta(t, 0.1, std, 0.01)

	b := make([]float32, n)
	in.Biases(b)
	mean, std = meanStd(b)
	assert.InDelta(t, 0, mean, 0.05)
	assert.InDelta(t, 1, std, 0.05)

	for _, v := range append(w, b...) {
		assert.NotZero(t, v)
	}
}

func meanStd(v []float32) (float64, float64) {
	x := make([]float64, len(v))
	for i, f := range v {
		x[i] = float64(f)
	}
	return stat.MeanStdDev(x, nil)
}
