package train

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/optim"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("train: invalid config")

// Config holds the training hyperparameters.
type Config struct {
	Hidden    []int   // Hidden layer widths (default: [30])
	Epochs    int     // Passes over the training set (default: 32)
	BatchSize int     // Examples per weight update (default: 10)
	Rate      float32 // Learning rate (default: 1.0)
	Seed      int64   // Initializer and shuffle seed (default: nn.DefaultSeed)
	Cost      nn.Cost // Output cost (default: cross-entropy)
	Evaluate  bool    // Score the test set after every epoch
}

// DefaultConfig returns the configuration of the reference MNIST run: one
// hidden layer of 30, 32 epochs, mini-batches of 10 at rate 1.
func DefaultConfig() Config {
	return Config{
		Hidden:    []int{30},
		Epochs:    0x20,
		BatchSize: optim.DefaultBatchSize,
		Rate:      optim.DefaultLR,
		Seed:      nn.DefaultSeed,
		Cost:      nn.CrossEntropy,
		Evaluate:  true,
	}
}

// Validate checks c for values training cannot run with.
func (c Config) Validate() error {
	if c.Epochs < 1 {
		return errors.Wrapf(ErrInvalidConfig, "epochs %d must be positive", c.Epochs)
	}
	if c.BatchSize < 1 {
		return errors.Wrapf(ErrInvalidConfig, "batch size %d must be positive", c.BatchSize)
	}
	if c.Rate <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "rate %g must be positive", c.Rate)
	}
	for i, h := range c.Hidden {
		if h < 1 {
			return errors.Wrapf(ErrInvalidConfig, "hidden layer %d has width %d", i, h)
		}
	}
	if c.Cost == nn.NoCost || !c.Cost.Valid() {
		return errors.Wrapf(ErrInvalidConfig, "output cost %s", c.Cost)
	}
	return nil
}

// Sizes returns the layer widths of a network mapping in inputs to out
// classes.
func (c Config) Sizes(in, out int) []int {
	sizes := make([]int, 0, len(c.Hidden)+2)
	sizes = append(sizes, in)
	sizes = append(sizes, c.Hidden...)
	return append(sizes, out)
}
