//go:build windows

package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/backend/device"
)

// gpuMemory is a storage buffer of n float32 values.
type gpuMemory struct {
	buf *wgpu.Buffer
	n   int
}

func (m *gpuMemory) Len() int { return m.n }

func (m *gpuMemory) size() uint64 {
	//nolint:gosec // G115: n is positive
	return uint64(m.n) * 4
}

// Alloc reserves a zeroed storage buffer of n values.
func (e *Executor) Alloc(n int) (device.Memory, error) {
	if n <= 0 {
		return nil, errors.Errorf("webgpu: alloc size %d must be positive", n)
	}
	m := &gpuMemory{n: n}
	buf, recycled := e.pool.Acquire(m.size())
	if buf == nil {
		return nil, errors.Errorf("webgpu: failed to allocate %d bytes", m.size())
	}
	m.buf = buf
	if recycled {
		if err := e.Upload(m, make([]float32, n)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Free returns the buffer to the pool.
func (e *Executor) Free(m device.Memory) error {
	gm, err := e.mem(m)
	if err != nil {
		return err
	}
	e.pool.Release(gm.buf, gm.size())
	gm.buf = nil
	return nil
}

// Upload copies src into dst through a mapped staging buffer.
func (e *Executor) Upload(dst device.Memory, src []float32) error {
	gm, err := e.mem(dst)
	if err != nil {
		return err
	}
	if len(src) != gm.n {
		return errors.Errorf("webgpu: upload of %d values into region of %d", len(src), gm.n)
	}
	staging := e.createBuffer(float32Bytes(src), wgpu.BufferUsageCopySrc)
	defer staging.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, gm.buf, 0, gm.size())
	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)
	return nil
}

// Download copies src into dst. It waits for every submitted command.
func (e *Executor) Download(src device.Memory, dst []float32) error {
	gm, err := e.mem(src)
	if err != nil {
		return err
	}
	if len(dst) != gm.n {
		return errors.Errorf("webgpu: download of region of %d into %d values", gm.n, len(dst))
	}
	data, err := e.readBuffer(gm.buf, gm.size())
	if err != nil {
		return err
	}
	copy(float32Bytes(dst), data)
	return nil
}

// Run dispatches one kernel. Arguments bind in order at 0..n-1 and the
// parameter block at n.
func (e *Executor) Run(l device.Launch) error {
	if err := l.Validate(); err != nil {
		return err
	}
	code, ok := shaderSources[l.Op]
	if !ok {
		return errors.Errorf("webgpu: no shader for op %d", l.Op)
	}
	bufs := make([]*gpuMemory, len(l.Args))
	for i, m := range l.Args {
		gm, err := e.mem(m)
		if err != nil {
			return err
		}
		bufs[i] = gm
	}

	shader := e.compileShader(l.Op, code)
	pipeline := e.getOrCreatePipeline(l.Op, shader)

	bufferParams := e.createUniformBuffer(encodeParams(l))
	defer bufferParams.Release()

	entries := make([]wgpu.BindGroupEntry, 0, len(bufs)+1)
	for i, gm := range bufs {
		//nolint:gosec // G115: argument index is small
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), gm.buf, 0, gm.size()))
	}
	//nolint:gosec // G115: argument count is small
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(bufs)), bufferParams, 0, paramsSize))

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := e.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	//nolint:gosec // G115: workgroup count is non-negative
	workgroups := uint32((l.Threads() + workgroupSize - 1) / workgroupSize)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)
	return nil
}

func (e *Executor) mem(m device.Memory) (*gpuMemory, error) {
	gm, ok := m.(*gpuMemory)
	if !ok || gm == nil {
		return nil, errors.Errorf("webgpu: region %T does not belong to this executor", m)
	}
	if gm.buf == nil {
		return nil, errors.New("webgpu: region used after free")
	}
	return gm, nil
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached per op.
func (e *Executor) compileShader(op device.Op, code string) *wgpu.ShaderModule {
	e.mu.RLock()
	if shader, exists := e.shaders[op]; exists {
		e.mu.RUnlock()
		return shader
	}
	e.mu.RUnlock()

	shader := e.device.CreateShaderModuleWGSL(code)

	e.mu.Lock()
	e.shaders[op] = shader
	e.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (e *Executor) getOrCreatePipeline(op device.Op, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	e.mu.RLock()
	if pipeline, exists := e.pipelines[op]; exists {
		e.mu.RUnlock()
		return pipeline
	}
	e.mu.RUnlock()

	// Auto layout (nil layout).
	pipeline := e.device.CreateComputePipelineSimple(nil, shader, "main")

	e.mu.Lock()
	e.pipelines[op] = pipeline
	e.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer holding data.
func (e *Executor) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer rounded up to 16 bytes.
func (e *Executor) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer through a staging buffer,
// since storage buffers can't be mapped directly.
func (e *Executor) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)

	if err := stagingBuffer.MapAsync(e.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "webgpu: failed to map staging buffer")
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	stagingBuffer.Unmap()

	return result, nil
}

// paramsSize is the byte size of the Params uniform: rows, cols, act, scale.
const paramsSize = 16

func encodeParams(l device.Launch) []byte {
	params := make([]byte, paramsSize)
	//nolint:gosec // G115: dimensions are positive and validated
	binary.LittleEndian.PutUint32(params[0:4], uint32(l.Rows))
	//nolint:gosec // G115: dimensions are positive and validated
	binary.LittleEndian.PutUint32(params[4:8], uint32(l.Cols))
	//nolint:gosec // G115: activation is a small enum
	binary.LittleEndian.PutUint32(params[8:12], uint32(l.Act))
	binary.LittleEndian.PutUint32(params[12:16], math.Float32bits(l.Scale))
	return params
}

// float32Bytes views v as its little-endian bytes without copying.
func float32Bytes(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*4)
}
