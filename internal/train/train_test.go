package train

import (
	"bytes"
	"context"
	"log"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/internal/backend/cpu"
	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/internal/nn"
)

// toySet is two separable classes of 4-pixel images.
type toySet struct {
	images [][]float32
	labels []int
}

func newToySet(n int) *toySet {
	s := &toySet{}
	for i := 0; i < n; i++ {
		jitter := float32(i%5) * 0.02
		if i%2 == 0 {
			s.images = append(s.images, []float32{0.9 - jitter, 0.8 + jitter, 0.1, 0})
			s.labels = append(s.labels, 0)
		} else {
			s.images = append(s.images, []float32{0, 0.1 + jitter, 0.8, 0.9 - jitter})
			s.labels = append(s.labels, 1)
		}
	}
	return s
}

func (s *toySet) Count() int            { return len(s.images) }
func (s *toySet) Image(i int) []float32 { return s.images[i] }
func (s *toySet) Label(i int) int       { return s.labels[i] }
func (s *toySet) Shuffle(r *rand.Rand) {
	r.Shuffle(len(s.images), func(i, j int) {
		s.images[i], s.images[j] = s.images[j], s.images[i]
		s.labels[i], s.labels[j] = s.labels[j], s.labels[i]
	})
}

func toyConfig() Config {
	cfg := DefaultConfig()
	cfg.Hidden = []int{3}
	cfg.Epochs = 40
	cfg.BatchSize = 2
	return cfg
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero epochs", func(c *Config) { c.Epochs = 0 }},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }},
		{"negative rate", func(c *Config) { c.Rate = -1 }},
		{"empty hidden layer", func(c *Config) { c.Hidden = []int{30, 0} }},
		{"no cost", func(c *Config) { c.Cost = nn.NoCost }},
		{"unknown cost", func(c *Config) { c.Cost = nn.Cost(42) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfigSizes(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, []int{784, 30, 10}, cfg.Sizes(784, 10))

	cfg.Hidden = nil
	assert.Equal(t, []int{4, 2}, cfg.Sizes(4, 2))
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float32{1}))
	assert.Equal(t, 2, Argmax([]float32{0.1, 0.2, 0.9, 0.3}))
	assert.Equal(t, 1, Argmax([]float32{0, 0.5, 0.5}))
}

func TestTrainerLearnsToySet(t *testing.T) {
	cfg := toyConfig()
	net, err := nn.NewChain(cpu.NewFactory(cpu.WithSeed(cfg.Seed)), cfg.Sizes(4, 2), cfg.Cost)
	require.NoError(t, err)
	defer net.Release()

	tr, err := New(net, cfg, nil)
	require.NoError(t, err)

	set := newToySet(20)
	before, err := tr.Evaluate(context.Background(), set)
	require.NoError(t, err)

	train, test, err := tr.Run(context.Background(), set, newToySet(10))
	require.NoError(t, err)

	assert.Equal(t, 20, train.Count)
	assert.Equal(t, 10, test.Count)
	assert.Equal(t, 1.0, test.Accuracy())
	assert.Less(t, train.AvgCost(), before.AvgCost())
	assert.Equal(t, 0, tr.Optimizer().Pending())
}

func TestTrainerFlushesPartialBatch(t *testing.T) {
	cfg := toyConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 4
	net, err := nn.NewChain(cpu.NewFactory(), cfg.Sizes(4, 2), cfg.Cost)
	require.NoError(t, err)
	defer net.Release()

	tr, err := New(net, cfg, nil)
	require.NoError(t, err)

	_, err = tr.Epoch(context.Background(), newToySet(10))
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Optimizer().Commits())
	assert.Equal(t, 0, tr.Optimizer().Pending())
}

func TestTrainerLogsDeviceProfile(t *testing.T) {
	cfg := toyConfig()
	cfg.Epochs = 1
	f := device.NewFactory(nil, device.WithSeed(cfg.Seed))
	defer f.Release()
	net, err := nn.NewChain(f, cfg.Sizes(4, 2), cfg.Cost)
	require.NoError(t, err)

	var buf bytes.Buffer
	tr, err := New(net, cfg, log.New(&buf, "", 0))
	require.NoError(t, err)

	_, _, err = tr.Run(context.Background(), newToySet(6), nil)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "epoch 0:")
	assert.Contains(t, out, "12 times : 'activate_sigmoid'")
	assert.Contains(t, out, "12 times : 'conn_forward'")
	assert.Contains(t, out, "total:")
	assert.Contains(t, out, "train set: score")

	// The profile is reset once logged.
	for _, s := range f.Profile() {
		assert.Zero(t, s.Count, s.Name)
	}
	require.NoError(t, net.Release())
}

func TestTrainerStopsOnCancel(t *testing.T) {
	cfg := toyConfig()
	net, err := nn.NewChain(cpu.NewFactory(), cfg.Sizes(4, 2), cfg.Cost)
	require.NoError(t, err)
	defer net.Release()

	tr, err := New(net, cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = tr.Run(ctx, newToySet(4), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsIncompleteNetwork(t *testing.T) {
	net := nn.NewNetwork(cpu.NewFactory())
	_, err := New(net, DefaultConfig(), nil)
	require.ErrorIs(t, err, nn.ErrConfig)
}
