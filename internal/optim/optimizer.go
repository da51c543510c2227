// Package optim schedules weight updates for networks that accumulate
// gradients in place.
//
// The network's connections own their gradient accumulators; an optimizer
// only decides when the accumulated sum is applied and with which scale.
//
// Example usage:
//
//	opt := optim.NewSGD(net, optim.SGDConfig{LR: 1, BatchSize: 10})
//
//	for i := range examples {
//	    // write input, net.Forward(), set desired output, net.Backward()
//	    if err := opt.Step(); err != nil {
//	        return err
//	    }
//	}
//	return opt.Flush()
package optim

// Committer applies gradients accumulated over batchSize examples and
// clears the accumulators. *nn.Network implements it.
type Committer interface {
	CommitGrad(rate float32, batchSize int) error
}

// Optimizer is the base interface for all update schedules.
type Optimizer interface {
	// Step records one backpropagated example and commits when a batch
	// is complete.
	Step() error

	// Flush commits a partial batch, if any.
	Flush() error

	// GetLR returns the current learning rate.
	GetLR() float32
}
