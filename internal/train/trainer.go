// Package train drives a network over a labelled image set: the epoch loop,
// scoring, cost bookkeeping and progress logging.
package train

import (
	"context"
	"io"
	"log"
	"math/rand/v2"

	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/dataset"
	"github.com/born-ml/bpnet/internal/nn"
	"github.com/born-ml/bpnet/internal/optim"
)

// Dataset is a labelled set of equally sized images.
type Dataset interface {
	Count() int
	Image(i int) []float32
	Label(i int) int
	Shuffle(r *rand.Rand)
}

var _ Dataset = (*dataset.ImageSet)(nil)

// Result is the outcome of one pass over a dataset.
type Result struct {
	Score int     // Correctly classified examples
	Count int     // Examples seen
	Cost  float64 // Summed cost
}

// Accuracy returns Score / Count.
func (r Result) Accuracy() float64 {
	if r.Count == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.Count)
}

// AvgCost returns Cost / Count.
func (r Result) AvgCost() float64 {
	if r.Count == 0 {
		return 0
	}
	return r.Cost / float64(r.Count)
}

// Trainer trains one network.
type Trainer struct {
	net    *nn.Network
	cfg    Config
	opt    *optim.SGD
	logger *log.Logger
	rng    *rand.Rand

	output []float32
	target []float32
}

// New creates a Trainer for net. A nil logger discards progress output.
func New(net *nn.Network, cfg Config, logger *log.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	//nolint:gosec // G115: seed bit pattern is reused as is
	seed := uint64(cfg.Seed)
	classes := net.OutputLayer().Size()
	return &Trainer{
		net:    net,
		cfg:    cfg,
		opt:    optim.NewSGD(net, optim.SGDConfig{LR: cfg.Rate, BatchSize: cfg.BatchSize}),
		logger: logger,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		output: make([]float32, classes),
		target: make([]float32, classes),
	}, nil
}

// Optimizer returns the update schedule.
func (t *Trainer) Optimizer() *optim.SGD { return t.opt }

// Run trains for cfg.Epochs epochs, scoring test after each one when
// cfg.Evaluate is set and test is non-nil. It returns the last epoch's
// results.
func (t *Trainer) Run(ctx context.Context, trainSet, testSet Dataset) (train, test Result, err error) {
	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		t.logger.Printf("epoch %d:", epoch)

		train, err = t.Epoch(ctx, trainSet)
		if err != nil {
			return train, test, errors.Wrapf(err, "epoch %d", epoch)
		}
		t.logProfile()
		t.logger.Printf("train set: score %d / %d, average cost %.6f", train.Score, train.Count, train.AvgCost())

		if t.cfg.Evaluate && testSet != nil {
			test, err = t.Evaluate(ctx, testSet)
			if err != nil {
				return train, test, errors.Wrapf(err, "epoch %d: test", epoch)
			}
			t.logger.Printf("test set: score %d / %d, average cost %.6f", test.Score, test.Count, test.AvgCost())
		}
	}
	return train, test, nil
}

// Epoch shuffles set and trains on every example once. A partial batch at
// the end is committed before returning.
func (t *Trainer) Epoch(ctx context.Context, set Dataset) (Result, error) {
	set.Shuffle(t.rng)

	var res Result
	out := t.net.OutputLayer()
	for i := 0; i < set.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		label := set.Label(i)
		hit, cost, err := t.infer(set.Image(i), label)
		if err != nil {
			return res, errors.Wrapf(err, "example %d", i)
		}
		res.add(hit, cost)

		if err := out.SetDesiredOutput(t.target); err != nil {
			return res, err
		}
		if err := t.net.Backward(); err != nil {
			return res, errors.Wrapf(err, "example %d", i)
		}
		if err := t.opt.Step(); err != nil {
			return res, err
		}
	}
	if err := t.opt.Flush(); err != nil {
		return res, err
	}
	return res, t.net.Flush()
}

// Evaluate scores set without touching the weights.
func (t *Trainer) Evaluate(ctx context.Context, set Dataset) (Result, error) {
	var res Result
	for i := 0; i < set.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		hit, cost, err := t.infer(set.Image(i), set.Label(i))
		if err != nil {
			return res, errors.Wrapf(err, "example %d", i)
		}
		res.add(hit, cost)
	}
	return res, nil
}

// infer runs one forward pass and scores it against label. On return
// t.target holds the one-hot target for label.
func (t *Trainer) infer(image []float32, label int) (hit bool, cost float32, err error) {
	if err := t.net.InputLayer().Input().Write(image); err != nil {
		return false, 0, err
	}
	if err := t.net.Forward(); err != nil {
		return false, 0, err
	}
	out := t.net.OutputLayer()
	if err := out.Output().Read(t.output); err != nil {
		return false, 0, err
	}
	dataset.OneHot(t.target, label)
	cost, err = out.Cost(t.target)
	if err != nil {
		return false, 0, err
	}
	return Argmax(t.output) == label, cost, nil
}

func (r *Result) add(hit bool, cost float32) {
	r.Count++
	if hit {
		r.Score++
	}
	r.Cost += float64(cost)
}

// Argmax returns the index of the largest value; the first one wins ties.
func Argmax(v []float32) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
