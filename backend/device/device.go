// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device provides the asynchronous kernel backend.
//
// Layer and connection operations enqueue named kernels on one ordered
// queue and return immediately. Results become visible after Finish (or
// nn.Network.Flush) or through a blocking buffer read. Every kernel keeps a
// cumulative duration and invocation count:
//
//	f := device.NewFactory(nil)
//	defer f.Release()
//	net, _ := nn.NewChain(f, []int{784, 30, 10}, nn.CrossEntropy)
//	// ... train ...
//	for _, s := range f.Profile() {
//	    fmt.Printf("%.3f ms, %d times : '%s'\n", s.Time.Seconds()*1000, s.Count, s.Name)
//	}
//	f.ResetProfile()
package device

import (
	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/nn"
)

// Factory builds device layers and connections on one queue.
type Factory = device.Factory

// Option configures a Factory.
type Option = device.Option

// Executor owns device memory and runs kernel bodies.
type Executor = device.Executor

// HostExecutor emulates a device in host memory.
type HostExecutor = device.HostExecutor

// KernelStat is a snapshot of one kernel's counters.
type KernelStat = device.KernelStat

// Compile-time check that Factory implements nn.Factory.
var _ nn.Factory = (*Factory)(nil)

// ErrQueueClosed is returned for work issued after Release.
var ErrQueueClosed = device.ErrQueueClosed

// Kernel names.
const (
	KernelActivateIdentity = device.KernelActivateIdentity
	KernelActivateSigmoid  = device.KernelActivateSigmoid
	KernelConnForward      = device.KernelConnForward
	KernelSeedCrossEntropy = device.KernelSeedCrossEntropy
	KernelSeedQuadratic    = device.KernelSeedQuadratic
	KernelDeriveIdentity   = device.KernelDeriveIdentity
	KernelDeriveSigmoid    = device.KernelDeriveSigmoid
	KernelBackwardGrad     = device.KernelBackwardGrad
	KernelBackwardProp     = device.KernelBackwardProp
	KernelConnApply        = device.KernelConnApply
)

// NewFactory creates a device factory on exec; nil selects a HostExecutor.
func NewFactory(exec Executor, opts ...Option) *Factory {
	return device.NewFactory(exec, opts...)
}

// NewHostExecutor creates an emulated device capped at limit float32
// values; 0 means unlimited.
func NewHostExecutor(limit int) *HostExecutor {
	return device.NewHostExecutor(limit)
}

// WithSeed sets the seed of the weight and bias initializer.
func WithSeed(seed int64) Option {
	return device.WithSeed(seed)
}
