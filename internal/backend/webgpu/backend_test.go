//go:build windows

package webgpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/internal/nn"
)

func TestIsAvailable(t *testing.T) {
	available := IsAvailable()
	t.Logf("WebGPU available: %v", available)
}

func newExecutor(t *testing.T) *Executor {
	t.Helper()
	exec, err := New()
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	return exec
}

func TestNew(t *testing.T) {
	exec := newExecutor(t)
	defer exec.Release()

	require.NotEmpty(t, exec.Name())
	t.Logf("Executor name: %s", exec.Name())
}

func TestUploadDownload(t *testing.T) {
	exec := newExecutor(t)
	defer exec.Release()

	m, err := exec.Alloc(5)
	require.NoError(t, err)

	got := make([]float32, 5)
	require.NoError(t, exec.Download(m, got))
	require.Equal(t, []float32{0, 0, 0, 0, 0}, got)

	want := []float32{1, -2, 3.5, 0, 7}
	require.NoError(t, exec.Upload(m, want))
	require.NoError(t, exec.Download(m, got))
	require.Equal(t, want, got)

	require.NoError(t, exec.Free(m))
	require.Error(t, exec.Download(m, got))
}

// buildNet builds a [4, 3, 2] cross-entropy network.
func buildNet(t *testing.T, f nn.Factory) *nn.Network {
	t.Helper()
	net, err := nn.NewChain(f, []int{4, 3, 2}, nn.CrossEntropy)
	require.NoError(t, err)
	return net
}

func TestParityWithHostExecutor(t *testing.T) {
	exec := newExecutor(t)

	gpu := device.NewFactory(exec, device.WithSeed(7))
	host := device.NewFactory(nil, device.WithSeed(7))
	defer gpu.Release()
	defer host.Release()

	gnet, hnet := buildNet(t, gpu), buildNet(t, host)
	input := []float32{0.1, 0.9, -0.4, 0.3}
	target := []float32{0, 1}

	for _, net := range []*nn.Network{gnet, hnet} {
		net.Reset()
		for step := 0; step < 3; step++ {
			require.NoError(t, net.InputLayer().Input().Write(input))
			require.NoError(t, net.Forward())
			require.NoError(t, net.OutputLayer().SetDesiredOutput(target))
			require.NoError(t, net.Backward())
			require.NoError(t, net.CommitGrad(0.5, 1))
		}
		require.NoError(t, net.Forward())
	}

	got := make([]float32, 2)
	want := make([]float32, 2)
	require.NoError(t, gnet.OutputLayer().Output().Read(got))
	require.NoError(t, hnet.OutputLayer().Output().Read(want))
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("output mismatch (-host +webgpu):\n%s", diff)
	}
}
