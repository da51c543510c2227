//go:build !windows

package main

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/backend/device"
)

func newWebGPUExecutor() (device.Executor, error) {
	return nil, errors.New("webgpu backend is only built on windows")
}
