// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the backprop engine: layers, connections and the
// Network that drives them through pipelined forward and backward stages.
//
// # Overview
//
// A network is a linear chain of layers joined by weighted connections.
// Every layer and connection comes from one Factory, which fixes the
// execution strategy:
//   - backend/cpu: synchronous, host memory
//   - backend/device: asynchronous kernels on an ordered queue, profiled
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/bpnet/backend/cpu"
//	    "github.com/born-ml/bpnet/nn"
//	)
//
//	func main() {
//	    net, err := nn.NewChain(cpu.NewFactory(), []int{784, 30, 10}, nn.CrossEntropy)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer net.Release()
//
//	    _ = net.InputLayer().Input().Write(pixels)
//	    _ = net.Forward()
//	    _ = net.OutputLayer().SetDesiredOutput(target)
//	    _ = net.Backward()
//	    _ = net.CommitGrad(1.0, 1)
//	}
//
// # Stages
//
// StepForward advances the forward wavefront by one layer and StepBackward
// the backward one by one connection. Forward and Backward run a full pass.
// On the device backend a step only enqueues work: call Flush (Forward does)
// or read a buffer before looking at results.
package nn
