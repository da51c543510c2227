package nn_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/internal/nn"
)

func TestCostEval(t *testing.T) {
	tests := []struct {
		name   string
		cost   nn.Cost
		out    []float32
		target []float32
		want   float64
	}{
		{"cross-entropy half", nn.CrossEntropy, []float32{0.5}, []float32{1}, math.Ln2},
		{"cross-entropy two units", nn.CrossEntropy, []float32{0.9, 0.2}, []float32{1, 0},
			-math.Log(0.9) - math.Log(0.8)},
		{"cross-entropy perfect", nn.CrossEntropy, []float32{1, 0}, []float32{1, 0}, 0},
		{"quadratic", nn.Quadratic, []float32{0.5, 1}, []float32{1, 0}, 0.5 * (0.25 + 1)},
		{"no cost", nn.NoCost, []float32{0.5}, []float32{1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.cost.Eval(tt.out, tt.target), 1e-5)
		})
	}
}

func TestCrossEntropyClamps(t *testing.T) {
	// A saturated wrong answer stays finite: -ln(1e-7).
	got := nn.CrossEntropy.Eval([]float32{0}, []float32{1})
	assert.False(t, math.IsInf(float64(got), 0))
	assert.InDelta(t, -math.Log(1e-7), got, 1e-2)
}

func TestCostSeed(t *testing.T) {
	out := []float32{0.5, 0.8}
	desired := []float32{1, 0}
	dst := make([]float32, 2)

	// Cross-entropy over sigmoid: exactly o - t, no derivative.
	nn.CrossEntropy.Seed(nn.Sigmoid, out, desired, dst)
	assert.InDeltaSlice(t, []float32{-0.5, 0.8}, dst, 1e-7)

	// Quadratic: (o - t) ⊙ o(1-o).
	nn.Quadratic.Seed(nn.Sigmoid, out, desired, dst)
	assert.InDeltaSlice(t, []float32{-0.125, 0.128}, dst, 1e-6)

	nn.Quadratic.Seed(nn.Identity, out, desired, dst)
	assert.InDeltaSlice(t, []float32{-0.5, 0.8}, dst, 1e-7)
}

func TestParseCost(t *testing.T) {
	for _, c := range []nn.Cost{nn.NoCost, nn.CrossEntropy, nn.Quadratic} {
		got, err := nn.ParseCost(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := nn.ParseCost("hinge")
	require.ErrorIs(t, err, nn.ErrConfig)
}

func TestValidateLayer(t *testing.T) {
	require.NoError(t, nn.ValidateLayer(1, 10, nn.Sigmoid, nn.CrossEntropy))
	require.NoError(t, nn.ValidateLayer(1, 10, nn.Identity, nn.Quadratic))

	tests := []struct {
		name string
		id   int
		size int
		act  nn.Activation
		cost nn.Cost
	}{
		{"negative id", -1, 10, nn.Sigmoid, nn.NoCost},
		{"zero size", 1, 0, nn.Sigmoid, nn.NoCost},
		{"unknown activation", 1, 10, nn.Activation(9), nn.NoCost},
		{"unknown cost", 1, 10, nn.Sigmoid, nn.Cost(9)},
		{"cross-entropy without sigmoid", 1, 10, nn.Identity, nn.CrossEntropy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, nn.ValidateLayer(tt.id, tt.size, tt.act, tt.cost), nn.ErrConfig)
		})
	}
}

func TestValidateConnection(t *testing.T) {
	require.NoError(t, nn.ValidateConnection(0, 784, 30))
	require.ErrorIs(t, nn.ValidateConnection(-1, 3, 3), nn.ErrConfig)
	require.ErrorIs(t, nn.ValidateConnection(0, 0, 3), nn.ErrConfig)
	require.ErrorIs(t, nn.ValidateConnection(0, 3, 0), nn.ErrConfig)
}
