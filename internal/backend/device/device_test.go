package device_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/internal/backend/cpu"
	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/nn/nntest"
)

func newFactory(t *testing.T, exec device.Executor, seed int64) *device.Factory {
	t.Helper()
	f := device.NewFactory(exec, device.WithSeed(seed))
	t.Cleanup(func() { _ = f.Release() })
	return f
}

func TestConformance(t *testing.T) {
	nntest.Run(t, func(t *testing.T, seed int64) nn.Factory {
		return newFactory(t, nil, seed)
	})
}

func TestFactoryName(t *testing.T) {
	assert.Equal(t, "device/host", newFactory(t, nil, 1).Name())
}

func counts(f *device.Factory) map[string]int {
	m := make(map[string]int)
	for _, s := range f.Profile() {
		if s.Count > 0 {
			m[s.Name] = s.Count
		}
	}
	return m
}

func TestKernelCounts(t *testing.T) {
	const passes = 3
	f := newFactory(t, nil, 1)
	net, err := nn.NewChain(f, []int{2, 3, 1}, nn.CrossEntropy)
	require.NoError(t, err)
	require.Empty(t, counts(f), "construction runs no kernels")

	for i := 0; i < passes; i++ {
		require.NoError(t, net.InputLayer().Input().Write([]float32{0.2, 0.7}))
		require.NoError(t, net.Forward())
	}
	assert.Equal(t, map[string]int{
		device.KernelActivateIdentity: passes,
		device.KernelActivateSigmoid:  2 * passes,
		device.KernelConnForward:      2 * passes,
	}, counts(f))

	f.ResetProfile()
	nntest.Step(t, net, []float32{0.2, 0.7}, []float32{1})
	require.NoError(t, net.CommitGrad(1, 1))
	require.NoError(t, net.Flush())
	assert.Equal(t, map[string]int{
		device.KernelActivateIdentity: 1,
		device.KernelActivateSigmoid:  2,
		device.KernelConnForward:      2,
		device.KernelSeedCrossEntropy: 1,
		device.KernelBackwardGrad:     2,
		device.KernelBackwardProp:     2,
		device.KernelDeriveSigmoid:    1,
		device.KernelConnApply:        2,
	}, counts(f))
}

func TestQuadraticKernels(t *testing.T) {
	f := newFactory(t, nil, 1)
	net, err := nn.NewChain(f, []int{2, 2}, nn.Quadratic)
	require.NoError(t, err)

	nntest.Step(t, net, []float32{1, 0}, []float32{0, 1})
	require.NoError(t, net.Flush())
	assert.Equal(t, 1, counts(f)[device.KernelSeedQuadratic])
	assert.Zero(t, counts(f)[device.KernelSeedCrossEntropy])
}

func TestResetProfileKeepsWeights(t *testing.T) {
	f := newFactory(t, nil, 1)
	net, err := nn.NewChain(f, []int{2, 3, 1}, nn.CrossEntropy)
	require.NoError(t, err)

	nntest.Step(t, net, []float32{0.2, 0.7}, []float32{1})
	require.NoError(t, net.CommitGrad(1, 1))
	before := nntest.Weights(t, net)

	f.ResetProfile()
	for _, s := range f.Profile() {
		assert.Zero(t, s.Count, s.Name)
		assert.Zero(t, s.Time, s.Name)
	}
	assert.Equal(t, before, nntest.Weights(t, net))
}

// TestParityWithCPU trains the same network on both backends and expects
// the same weights.
func TestParityWithCPU(t *testing.T) {
	sizes := []int{4, 5, 3}
	hnet, err := nn.NewChain(cpu.NewFactory(cpu.WithSeed(21)), sizes, nn.CrossEntropy)
	require.NoError(t, err)
	dnet, err := nn.NewChain(newFactory(t, nil, 21), sizes, nn.CrossEntropy)
	require.NoError(t, err)
	require.Equal(t, nntest.Weights(t, hnet), nntest.Weights(t, dnet))

	for i := 0; i < 20; i++ {
		v := float32(i%7) / 7
		input := []float32{v, 1 - v, v * v, 0.5}
		target := []float32{0, 0, 0}
		target[i%3] = 1
		for _, net := range []*nn.Network{hnet, dnet} {
			nntest.Step(t, net, input, target)
			if (i+1)%5 == 0 {
				require.NoError(t, net.CommitGrad(1, 5))
			}
		}
	}

	if diff := cmp.Diff(nntest.Weights(t, hnet), nntest.Weights(t, dnet), nntest.Approx(1e-4)); diff != "" {
		t.Errorf("weights differ (-cpu +device):\n%s", diff)
	}
}

// TestReadWaitsForKernels reads the output without an explicit Flush.
func TestReadWaitsForKernels(t *testing.T) {
	hnet, err := nn.NewChain(cpu.NewFactory(cpu.WithSeed(4)), []int{3, 2}, nn.CrossEntropy)
	require.NoError(t, err)
	dnet, err := nn.NewChain(newFactory(t, nil, 4), []int{3, 2}, nn.CrossEntropy)
	require.NoError(t, err)

	for _, net := range []*nn.Network{hnet, dnet} {
		require.NoError(t, net.InputLayer().Input().Write([]float32{1, 2, 3}))
		require.NoError(t, net.StepForward())
		require.NoError(t, net.StepForward())
	}
	want := nntest.Read(t, hnet.OutputLayer().Output())
	got := nntest.Read(t, dnet.OutputLayer().Output())
	if diff := cmp.Diff(want, got, nntest.Approx(1e-6)); diff != "" {
		t.Errorf("output (-cpu +device):\n%s", diff)
	}
}

func TestAllocationFailure(t *testing.T) {
	f := newFactory(t, device.NewHostExecutor(20), 1)

	_, err := nn.NewChain(f, []int{10, 10, 2}, nn.CrossEntropy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alloc")
	require.Error(t, f.Finish(), "a failed allocation poisons the queue")
}

// failing fails every launch of one op.
type failing struct {
	*device.HostExecutor
	op device.Op
}

func (e failing) Run(l device.Launch) error {
	if l.Op == e.op {
		return errors.New("device lost")
	}
	return e.HostExecutor.Run(l)
}

func TestKernelFailureIsSticky(t *testing.T) {
	f := newFactory(t, failing{device.NewHostExecutor(0), device.OpBackwardProp}, 1)
	net, err := nn.NewChain(f, []int{2, 2, 2}, nn.CrossEntropy)
	require.NoError(t, err)

	require.NoError(t, net.InputLayer().Input().Write([]float32{1, 1}))
	require.NoError(t, net.Forward())
	require.NoError(t, net.OutputLayer().SetDesiredOutput([]float32{1, 0}))

	// Enqueueing succeeds; the failure surfaces at the next sync point.
	require.NoError(t, net.Backward())
	err = net.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel "+device.KernelBackwardProp)
	assert.Contains(t, err.Error(), "device lost")

	require.Error(t, net.InputLayer().Input().Write([]float32{1, 1}))
	require.Error(t, net.Forward())
}

func TestBindRejectsOtherFactory(t *testing.T) {
	a := newFactory(t, nil, 1)
	b := newFactory(t, nil, 1)

	src, err := a.NewInputLayer(0, 2)
	require.NoError(t, err)
	dst, err := b.NewLayer(1, 2, nn.Sigmoid, nn.CrossEntropy)
	require.NoError(t, err)
	c, err := a.NewConnection(0, 2, 2)
	require.NoError(t, err)

	net := nn.NewNetwork(a)
	require.NoError(t, net.AddLayer(src))
	require.NoError(t, net.AddLayer(dst))
	require.ErrorIs(t, net.AddConn(c, 0, 1), nn.ErrConfig)
}

func TestClosedFactory(t *testing.T) {
	f := device.NewFactory(nil)
	l, err := f.NewInputLayer(0, 2)
	require.NoError(t, err)
	require.NoError(t, f.Release())

	require.ErrorIs(t, l.Input().Write([]float32{1, 2}), device.ErrQueueClosed)
	require.ErrorIs(t, l.Activate(), device.ErrQueueClosed)
	_, err = f.NewInputLayer(1, 2)
	require.ErrorIs(t, err, device.ErrQueueClosed)
}

func TestReleaseWithPendingWrite(t *testing.T) {
	f := device.NewFactory(nil)
	net, err := nn.NewChain(f, []int{64, 32, 10}, nn.CrossEntropy)
	require.NoError(t, err)

	require.NoError(t, net.InputLayer().Input().Write(make([]float32, 64)))
	require.NoError(t, net.OutputLayer().SetDesiredOutput(make([]float32, 10)))
	// No Finish: the queued transfers still hold their regions.
	require.NoError(t, net.Release())
	require.NoError(t, f.Release())
}
