package optim_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/internal/backend/cpu"
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/optim"
)

type commit struct {
	rate  float32
	batch int
}

type recorder struct {
	commits []commit
	err     error
}

func (r *recorder) CommitGrad(rate float32, batchSize int) error {
	r.commits = append(r.commits, commit{rate, batchSize})
	return r.err
}

func TestSGD_CommitsEveryBatch(t *testing.T) {
	rec := &recorder{}
	sgd := optim.NewSGD(rec, optim.SGDConfig{LR: 0.5, BatchSize: 3})

	for i := 0; i < 7; i++ {
		require.NoError(t, sgd.Step())
	}
	assert.Equal(t, []commit{{0.5, 3}, {0.5, 3}}, rec.commits)
	assert.Equal(t, 1, sgd.Pending())

	require.NoError(t, sgd.Flush())
	assert.Equal(t, []commit{{0.5, 3}, {0.5, 3}, {0.5, 1}}, rec.commits)
	assert.Equal(t, 3, sgd.Commits())

	// Nothing pending: Flush is a no-op.
	require.NoError(t, sgd.Flush())
	assert.Len(t, rec.commits, 3)
}

func TestSGD_Defaults(t *testing.T) {
	sgd := optim.NewSGD(&recorder{}, optim.SGDConfig{})
	assert.Equal(t, optim.DefaultLR, sgd.GetLR())
	assert.Equal(t, optim.DefaultBatchSize, sgd.BatchSize())

	sgd.SetLR(0.1)
	assert.InDelta(t, 0.1, sgd.GetLR(), 1e-7)
}

func TestSGD_InvalidBatch(t *testing.T) {
	rec := &recorder{}
	sgd := optim.NewSGD(rec, optim.SGDConfig{BatchSize: -1})
	require.Error(t, sgd.Step())
	assert.Empty(t, rec.commits)
}

func TestSGD_CommitError(t *testing.T) {
	boom := errors.New("boom")
	rec := &recorder{err: boom}
	sgd := optim.NewSGD(rec, optim.SGDConfig{BatchSize: 1})

	err := sgd.Step()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, sgd.Pending())
	assert.Equal(t, 0, sgd.Commits())
}

// TestSGD_UpdatesNetwork checks that an SGD step over a real network moves
// the weights and clears the accumulators.
func TestSGD_UpdatesNetwork(t *testing.T) {
	net, err := nn.NewChain(cpu.NewFactory(cpu.WithSeed(3)), []int{2, 2}, nn.CrossEntropy)
	require.NoError(t, err)
	defer net.Release()

	conn := net.Conns()[0]
	before := make([]float32, conn.Weight().Len())
	require.NoError(t, conn.Weight().Read(before))

	require.NoError(t, net.InputLayer().Input().Write([]float32{1, 0.5}))
	require.NoError(t, net.Forward())
	require.NoError(t, net.OutputLayer().SetDesiredOutput([]float32{1, 0}))
	require.NoError(t, net.Backward())

	sgd := optim.NewSGD(net, optim.SGDConfig{LR: 1, BatchSize: 1})
	require.NoError(t, sgd.Step())

	after := make([]float32, conn.Weight().Len())
	require.NoError(t, conn.Weight().Read(after))
	assert.NotEqual(t, before, after)

	grad := make([]float32, conn.WeightGrad().Len())
	require.NoError(t, conn.WeightGrad().Read(grad))
	assert.Equal(t, []float32{0, 0, 0, 0}, grad)
}
