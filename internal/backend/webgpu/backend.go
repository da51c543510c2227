//go:build windows

// Package webgpu runs the device backend's kernels as WGSL compute shaders.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/backend/device"
)

// Executor implements device.Executor on a WebGPU device.
type Executor struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache, keyed by op.
	shaders   map[device.Op]*wgpu.ShaderModule
	pipelines map[device.Op]*wgpu.ComputePipeline
	mu        sync.RWMutex

	adapterInfo *wgpu.AdapterInfo

	pool *BufferPool
}

var _ device.Executor = (*Executor)(nil)

// New creates a WebGPU executor.
// Returns an error if WebGPU is not available or initialization fails.
func New() (exec *Executor, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			exec = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrap(adapterErr, "webgpu: failed to request adapter")
	}

	adapterInfo := adapter.GetInfo()

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(deviceErr, "webgpu: failed to request device")
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get queue")
	}

	return &Executor{
		instance:    instance,
		adapter:     adapter,
		device:      dev,
		queue:       queue,
		shaders:     make(map[device.Op]*wgpu.ShaderModule),
		pipelines:   make(map[device.Op]*wgpu.ComputePipeline),
		adapterInfo: &adapterInfo,
		pool:        NewBufferPool(dev),
	}, nil
}

// Name returns the executor name.
func (e *Executor) Name() string {
	if e.adapterInfo != nil {
		return fmt.Sprintf("webgpu (%s %s)", e.adapterInfo.Device, e.adapterInfo.Vendor)
	}
	return "webgpu"
}

// AdapterInfo returns information about the GPU adapter.
func (e *Executor) AdapterInfo() *wgpu.AdapterInfo {
	return e.adapterInfo
}

// Release releases all WebGPU resources. Memory handed out by Alloc must
// not be used afterwards.
func (e *Executor) Release() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pool != nil {
		e.pool.Clear()
		e.pool = nil
	}
	for _, p := range e.pipelines {
		p.Release()
	}
	e.pipelines = nil
	for _, s := range e.shaders {
		s.Release()
	}
	e.shaders = nil

	if e.queue != nil {
		e.queue.Release()
		e.queue = nil
	}
	if e.device != nil {
		e.device.Release()
		e.device = nil
	}
	if e.adapter != nil {
		e.adapter.Release()
		e.adapter = nil
	}
	if e.instance != nil {
		e.instance.Release()
		e.instance = nil
	}
	return nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}
