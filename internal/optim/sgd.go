package optim

import (
	"github.com/pkg/errors"
)

// Defaults used when SGDConfig leaves a field zero.
const (
	DefaultLR        float32 = 1.0
	DefaultBatchSize         = 10
)

// SGD implements mini-batch Stochastic Gradient Descent.
//
// Update rule, applied every BatchSize examples:
//
//	param = param - lr/BatchSize * Σ gradient
//
// The sum is accumulated by the network during backward passes; SGD only
// counts examples.
type SGD struct {
	target    Committer
	lr        float32
	batchSize int
	pending   int
	commits   int
}

var _ Optimizer = (*SGD)(nil)

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR        float32 // Learning rate (default: 1.0)
	BatchSize int     // Examples per update (default: 10)
}

// NewSGD creates a new SGD optimizer committing into target.
func NewSGD(target Committer, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = DefaultLR
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &SGD{
		target:    target,
		lr:        config.LR,
		batchSize: config.BatchSize,
	}
}

// Step counts one example and commits once BatchSize have accumulated.
func (s *SGD) Step() error {
	if s.batchSize < 1 {
		return errors.Errorf("sgd: batch size %d must be positive", s.batchSize)
	}
	s.pending++
	if s.pending < s.batchSize {
		return nil
	}
	return s.commit()
}

// Flush commits the examples of an incomplete batch, averaged over their
// actual count.
func (s *SGD) Flush() error {
	if s.pending == 0 {
		return nil
	}
	return s.commit()
}

func (s *SGD) commit() error {
	n := s.pending
	s.pending = 0
	if err := s.target.CommitGrad(s.lr, n); err != nil {
		return errors.Wrap(err, "sgd")
	}
	s.commits++
	return nil
}

// Pending returns the number of examples accumulated since the last commit.
func (s *SGD) Pending() int { return s.pending }

// Commits returns the number of updates applied so far.
func (s *SGD) Commits() int { return s.commits }

// BatchSize returns the number of examples per update.
func (s *SGD) BatchSize() int { return s.batchSize }

// GetLR returns the current learning rate.
func (s *SGD) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
//
// Useful for learning rate scheduling during training.
func (s *SGD) SetLR(lr float32) {
	s.lr = lr
}
