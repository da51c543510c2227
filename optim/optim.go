// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim schedules mini-batch weight updates.
//
// # Basic Usage
//
//	opt := optim.NewSGD(net, optim.SGDConfig{LR: 1.0, BatchSize: 10})
//	for i := range examples {
//	    // forward, set desired output, backward
//	    if err := opt.Step(); err != nil {
//	        return err
//	    }
//	}
//	return opt.Flush()
package optim

import (
	"github.com/born-ml/bpnet/internal/optim"
)

// Committer applies accumulated gradients; *nn.Network implements it.
type Committer = optim.Committer

// Optimizer is the base interface for update schedules.
type Optimizer = optim.Optimizer

// SGD is mini-batch stochastic gradient descent.
type SGD = optim.SGD

// SGDConfig holds configuration for SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD schedule committing into target.
func NewSGD(target Committer, config SGDConfig) *SGD {
	return optim.NewSGD(target, config)
}
