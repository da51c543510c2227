// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the synchronous software backend.
//
// # Overview
//
// Every layer and connection operation runs to completion on the calling
// goroutine before returning:
//   - Host buffers backed by gorgonia.org/tensor
//   - Matrix-vector products through gonum BLAS
//   - Seeded Gaussian initialization
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/bpnet/backend/cpu"
//	    "github.com/born-ml/bpnet/nn"
//	)
//
//	func main() {
//	    f := cpu.NewFactory(cpu.WithSeed(987654))
//	    net, _ := nn.NewChain(f, []int{784, 30, 10}, nn.CrossEntropy)
//	    defer net.Release()
//	}
package cpu
