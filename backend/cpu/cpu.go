// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/bpnet/internal/backend/cpu"
	"github.com/born-ml/bpnet/nn"
)

// Factory builds software layers and connections.
type Factory = internalcpu.Factory

// Option configures a Factory.
type Option = internalcpu.Option

// Compile-time check that Factory implements nn.Factory.
var _ nn.Factory = (*Factory)(nil)

// NewFactory creates a software factory.
func NewFactory(opts ...Option) *Factory {
	return internalcpu.NewFactory(opts...)
}

// WithSeed sets the seed of the weight and bias initializer.
func WithSeed(seed int64) Option {
	return internalcpu.WithSeed(seed)
}
