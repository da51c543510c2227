// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/born-ml/bpnet/internal/nn"
)

// Network is an ordered chain of layers joined by connections.
type Network = nn.Network

// Layer is one stage of the chain.
type Layer = nn.Layer

// Connection is the weighted affine map joining layer s to layer s+1.
type Connection = nn.Connection

// Factory constructs layers and connections bound to one backend.
type Factory = nn.Factory

// Activation tags a layer's transfer function.
type Activation = nn.Activation

// Cost tags the loss a layer evaluates against its desired output.
type Cost = nn.Cost

// Activations.
const (
	Identity = nn.Identity
	Sigmoid  = nn.Sigmoid
)

// Costs.
const (
	NoCost       = nn.NoCost
	CrossEntropy = nn.CrossEntropy
	Quadratic    = nn.Quadratic
)

// DefaultSeed is the initializer seed used when a factory is not given one.
const DefaultSeed = nn.DefaultSeed

// ErrConfig marks network assembly mistakes.
var ErrConfig = nn.ErrConfig

// NewNetwork creates an empty network whose layers come from f.
func NewNetwork(f Factory) *Network {
	return nn.NewNetwork(f)
}

// NewChain assembles a validated network of the given widths on f: an
// identity input layer, sigmoid layers after it and cost on the last one.
//
// Example:
//
//	net, err := nn.NewChain(cpu.NewFactory(), []int{784, 30, 10}, nn.CrossEntropy)
func NewChain(f Factory, sizes []int, cost Cost) (*Network, error) {
	return nn.NewChain(f, sizes, cost)
}

// ParseCost maps a cost name ("cross_entropy", "quadratic") to its tag.
func ParseCost(name string) (Cost, error) {
	return nn.ParseCost(name)
}
