//go:build windows

package main

import (
	"github.com/born-ml/bpnet/internal/backend/device"
	"github.com/born-ml/bpnet/internal/backend/webgpu"
)

func newWebGPUExecutor() (device.Executor, error) {
	return webgpu.New()
}
