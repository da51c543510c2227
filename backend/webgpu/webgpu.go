//go:build windows

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides a WebGPU executor for the device backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/bpnet/backend/device"
//	    "github.com/born-ml/bpnet/backend/webgpu"
//	)
//
//	func main() {
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    f := device.NewFactory(gpu)
//	    defer f.Release()
//	}
package webgpu

import (
	"github.com/born-ml/bpnet/internal/backend/webgpu"
)

// Executor runs device kernels as WGSL compute shaders.
type Executor = webgpu.Executor

// New creates a WebGPU executor.
// Returns an error if WebGPU is not available or initialization fails.
func New() (*Executor, error) {
	return webgpu.New()
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() bool {
	return webgpu.IsAvailable()
}
