// Package nntest checks that a backend honours the nn.Layer, nn.Connection
// and nn.Factory contracts.
package nntest

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/tensor"
)

// NewFactory returns a fresh factory seeded with seed. Implementations
// register their own cleanup with t.
type NewFactory func(t *testing.T, seed int64) nn.Factory

// Run runs the conformance suite against the backend built by newFactory.
func Run(t *testing.T, newFactory NewFactory) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newFactory) })
	t.Run("SizeMismatch", func(t *testing.T) { testSizeMismatch(t, newFactory) })
	t.Run("FactoryErrors", func(t *testing.T) { testFactoryErrors(t, newFactory) })
	t.Run("KnownForward", func(t *testing.T) { testKnownForward(t, newFactory) })
	t.Run("KnownSeed", func(t *testing.T) { testKnownSeed(t, newFactory) })
	t.Run("SeedMatchesNumericGradient", func(t *testing.T) { testSeedGradient(t, newFactory) })
	t.Run("WeightGradMatchesNumericGradient", func(t *testing.T) { testWeightGradient(t, newFactory) })
	t.Run("ZeroErrorLeavesGradients", func(t *testing.T) { testZeroError(t, newFactory) })
	t.Run("SecondCommitIsNoop", func(t *testing.T) { testSecondCommit(t, newFactory) })
	t.Run("BatchAveraging", func(t *testing.T) { testBatchAveraging(t, newFactory) })
	t.Run("Deterministic", func(t *testing.T) { testDeterministic(t, newFactory) })
}

// Read copies b into a new slice.
func Read(t *testing.T, b tensor.Buffer) []float32 {
	t.Helper()
	v := make([]float32, b.Len())
	require.NoError(t, b.Read(v))
	return v
}

// Step runs one training example: forward, desired output, backward.
func Step(t *testing.T, net *nn.Network, input, target []float32) {
	t.Helper()
	require.NoError(t, net.InputLayer().Input().Write(input))
	require.NoError(t, net.Forward())
	require.NoError(t, net.OutputLayer().SetDesiredOutput(target))
	require.NoError(t, net.Backward())
}

// Weights reads the weight and bias of every connection, in order.
func Weights(t *testing.T, net *nn.Network) [][]float32 {
	t.Helper()
	var out [][]float32
	for _, c := range net.Conns() {
		out = append(out, Read(t, c.Weight()), Read(t, c.Bias()))
	}
	return out
}

// Approx compares float32 slices with a relative and absolute tolerance.
func Approx(tol float64) cmp.Option {
	return cmpopts.EquateApprox(tol, tol)
}

func chain(t *testing.T, f nn.Factory, cost nn.Cost, sizes ...int) *nn.Network {
	t.Helper()
	net, err := nn.NewChain(f, sizes, cost)
	require.NoError(t, err)
	return net
}

func testRoundTrip(t *testing.T, newFactory NewFactory) {
	net := chain(t, newFactory(t, 1), nn.CrossEntropy, 3, 2)
	want := []float32{0.25, -1.5, 3}

	in := net.InputLayer().Input()
	require.NoError(t, in.Write(want))
	got := Read(t, in)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("input round trip (-want +got):\n%s", diff)
	}

	// Activate on the identity input layer copies input to output.
	require.NoError(t, net.StepForward())
	require.NoError(t, net.Flush())
	assert.Equal(t, want, Read(t, net.InputLayer().Output()))
}

func testSizeMismatch(t *testing.T, newFactory NewFactory) {
	net := chain(t, newFactory(t, 1), nn.CrossEntropy, 3, 2)

	require.ErrorIs(t, net.InputLayer().Input().Write([]float32{1, 2}), tensor.ErrSize)
	require.ErrorIs(t, net.OutputLayer().Output().Read(make([]float32, 3)), tensor.ErrSize)
	require.ErrorIs(t, net.OutputLayer().SetDesiredOutput([]float32{1}), tensor.ErrSize)
	_, err := net.OutputLayer().Cost([]float32{1})
	require.ErrorIs(t, err, tensor.ErrSize)
}

func testFactoryErrors(t *testing.T, newFactory NewFactory) {
	f := newFactory(t, 1)

	_, err := f.NewInputLayer(0, 0)
	require.ErrorIs(t, err, nn.ErrConfig)
	_, err = f.NewLayer(1, 3, nn.Identity, nn.CrossEntropy)
	require.ErrorIs(t, err, nn.ErrConfig)
	_, err = f.NewConnection(0, 3, -1)
	require.ErrorIs(t, err, nn.ErrConfig)

	hidden, err := f.NewLayer(1, 3, nn.Sigmoid, nn.NoCost)
	require.NoError(t, err)
	assert.Nil(t, hidden.Desired())
	require.ErrorIs(t, hidden.SetDesiredOutput([]float32{0, 0, 0}), nn.ErrConfig)
	require.ErrorIs(t, hidden.SeedError(), nn.ErrConfig)
	_, err = hidden.Cost([]float32{0, 0, 0})
	require.ErrorIs(t, err, nn.ErrConfig)
	require.NoError(t, hidden.Release())

	in, err := f.NewInputLayer(0, 2)
	require.NoError(t, err)
	assert.Equal(t, nn.Identity, in.Activation())
	assert.Equal(t, nn.NoCost, in.CostFunc())
	require.NoError(t, in.Release())
}

// knownNet is a [2, 1] cross-entropy network with W = [[1, -1]], b = [0].
func knownNet(t *testing.T, f nn.Factory) *nn.Network {
	t.Helper()
	net := chain(t, f, nn.CrossEntropy, 2, 1)
	c := net.Conns()[0]
	require.NoError(t, c.Weight().Write([]float32{1, -1}))
	require.NoError(t, c.Bias().Write([]float32{0}))
	return net
}

func testKnownForward(t *testing.T, newFactory NewFactory) {
	net := knownNet(t, newFactory(t, 1))

	require.NoError(t, net.InputLayer().Input().Write([]float32{1, 1}))
	require.NoError(t, net.Forward())
	assert.Equal(t, []float32{0}, Read(t, net.OutputLayer().Input()))
	assert.Equal(t, []float32{0.5}, Read(t, net.OutputLayer().Output()))
}

func testKnownSeed(t *testing.T, newFactory NewFactory) {
	net := knownNet(t, newFactory(t, 1))
	out := net.OutputLayer()

	require.NoError(t, net.InputLayer().Input().Write([]float32{1, 1}))
	require.NoError(t, net.Forward())

	cost, err := out.Cost([]float32{1})
	require.NoError(t, err)
	assert.InDelta(t, math.Ln2, cost, 1e-6)

	require.NoError(t, out.SetDesiredOutput([]float32{1}))
	require.NoError(t, net.Backward())
	assert.Equal(t, []float32{-0.5}, Read(t, out.Error()))

	c := net.Conns()[0]
	assert.Equal(t, []float32{-0.5, -0.5}, Read(t, c.WeightGrad()))
	assert.Equal(t, []float32{-0.5}, Read(t, c.BiasGrad()))
	assert.Equal(t, []float32{-0.5, 0.5}, Read(t, net.InputLayer().Signal()))
}

// testSeedGradient compares the seeded output error with d cost / d input.
func testSeedGradient(t *testing.T, newFactory NewFactory) {
	x := []float64{-1.2, 0.3, 2.1}
	target := []float64{0, 1, 1}

	for _, cost := range []nn.Cost{nn.CrossEntropy, nn.Quadratic} {
		t.Run(cost.String(), func(t *testing.T) {
			f := newFactory(t, 1)
			l, err := f.NewLayer(1, len(x), nn.Sigmoid, cost)
			require.NoError(t, err)
			t.Cleanup(func() { _ = l.Release() })

			require.NoError(t, l.Input().Write(f32(x)))
			require.NoError(t, l.Activate())
			require.NoError(t, l.SetDesiredOutput(f32(target)))
			require.NoError(t, l.SeedError())
			got := Read(t, l.Error())

			want := fd.Gradient(nil, func(in []float64) float64 {
				return refCost(cost, refSigmoid(in), target)
			}, x, &fd.Settings{Formula: fd.Central})
			if diff := cmp.Diff(f32(want), got, Approx(1e-3)); diff != "" {
				t.Errorf("seed vs numeric gradient (-want +got):\n%s", diff)
			}
		})
	}
}

// testWeightGradient checks dW of the first connection of a [3, 4, 2]
// network against a float64 finite-difference gradient.
func testWeightGradient(t *testing.T, newFactory NewFactory) {
	input := []float32{0.5, -0.3, 0.9}
	target := []float64{1, 0}

	for _, cost := range []nn.Cost{nn.CrossEntropy, nn.Quadratic} {
		t.Run(cost.String(), func(t *testing.T) {
			net := chain(t, newFactory(t, 5), cost, 3, 4, 2)
			w0 := f64(Read(t, net.Conns()[0].Weight()))
			b0 := f64(Read(t, net.Conns()[0].Bias()))
			w1 := f64(Read(t, net.Conns()[1].Weight()))
			b1 := f64(Read(t, net.Conns()[1].Bias()))

			Step(t, net, input, f32(target))
			got := Read(t, net.Conns()[0].WeightGrad())

			x := f64(input)
			want := fd.Gradient(nil, func(w []float64) float64 {
				h := refSigmoid(refAffine(w, b0, x))
				o := refSigmoid(refAffine(w1, b1, h))
				return refCost(cost, o, target)
			}, w0, &fd.Settings{Formula: fd.Central})
			if diff := cmp.Diff(f32(want), got, Approx(1e-3)); diff != "" {
				t.Errorf("dW vs numeric gradient (-want +got):\n%s", diff)
			}
		})
	}
}

func testZeroError(t *testing.T, newFactory NewFactory) {
	for _, cost := range []nn.Cost{nn.CrossEntropy, nn.Quadratic} {
		t.Run(cost.String(), func(t *testing.T) {
			net := chain(t, newFactory(t, 3), cost, 3, 4, 2)

			require.NoError(t, net.InputLayer().Input().Write([]float32{0.1, 0.2, 0.3}))
			require.NoError(t, net.Forward())
			out := Read(t, net.OutputLayer().Output())
			require.NoError(t, net.OutputLayer().SetDesiredOutput(out))
			require.NoError(t, net.Backward())

			for _, c := range net.Conns() {
				assert.Equal(t, make([]float32, c.WeightGrad().Len()), Read(t, c.WeightGrad()))
				assert.Equal(t, make([]float32, c.BiasGrad().Len()), Read(t, c.BiasGrad()))
			}
		})
	}
}

func testSecondCommit(t *testing.T, newFactory NewFactory) {
	net := chain(t, newFactory(t, 3), nn.CrossEntropy, 3, 4, 2)
	before := Weights(t, net)

	Step(t, net, []float32{0.1, 0.2, 0.3}, []float32{1, 0})
	require.NoError(t, net.CommitGrad(1, 1))
	first := Weights(t, net)
	assert.NotEqual(t, before, first)

	require.NoError(t, net.CommitGrad(1, 1))
	assert.Equal(t, first, Weights(t, net))
}

// testBatchAveraging trains B identical examples with batch size B on one
// network and the single example with batch size 1 on another.
func testBatchAveraging(t *testing.T, newFactory NewFactory) {
	const batch = 4
	input := []float32{0.9, 0.1, 0.4}
	target := []float32{0, 1}

	a := chain(t, newFactory(t, 9), nn.CrossEntropy, 3, 4, 2)
	b := chain(t, newFactory(t, 9), nn.CrossEntropy, 3, 4, 2)
	require.Equal(t, Weights(t, a), Weights(t, b))

	for i := 0; i < batch; i++ {
		Step(t, a, input, target)
	}
	require.NoError(t, a.CommitGrad(0.5, batch))

	Step(t, b, input, target)
	require.NoError(t, b.CommitGrad(0.5, 1))

	if diff := cmp.Diff(Weights(t, b), Weights(t, a), Approx(1e-5)); diff != "" {
		t.Errorf("batch of %d vs single example (-single +batch):\n%s", batch, diff)
	}
}

func testDeterministic(t *testing.T, newFactory NewFactory) {
	a := chain(t, newFactory(t, 42), nn.CrossEntropy, 5, 3, 2)
	b := chain(t, newFactory(t, 42), nn.CrossEntropy, 5, 3, 2)
	c := chain(t, newFactory(t, 43), nn.CrossEntropy, 5, 3, 2)

	assert.Equal(t, Weights(t, a), Weights(t, b))
	assert.NotEqual(t, Weights(t, a), Weights(t, c))
}

func refSigmoid(x []float64) []float64 {
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 1 / (1 + math.Exp(-v))
	}
	return y
}

// refAffine computes W·x + b for a row-major W with len(x) columns.
func refAffine(w, b, x []float64) []float64 {
	y := make([]float64, len(b))
	for r := range y {
		sum := b[r]
		for c, v := range x {
			sum += w[r*len(x)+c] * v
		}
		y[r] = sum
	}
	return y
}

func refCost(cost nn.Cost, out, target []float64) float64 {
	var sum float64
	for i, o := range out {
		t := target[i]
		switch cost {
		case nn.CrossEntropy:
			sum -= t*math.Log(o) + (1-t)*math.Log(1-o)
		case nn.Quadratic:
			sum += 0.5 * (o - t) * (o - t)
		}
	}
	return sum
}

func f32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func f64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
