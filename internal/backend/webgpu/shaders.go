//go:build windows

package webgpu

import "github.com/born-ml/bpnet/internal/backend/device"

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

// params is shared by every shader. act is 0 for identity, 1 for sigmoid.
const params = `
struct Params {
    rows: u32,
    cols: u32,
    act: u32,
    scale: f32,
}
`

// activateShader: out = act(in).
const activateShader = `
@group(0) @binding(0) var<storage, read> src: array<f32>;
@group(0) @binding(1) var<storage, read_write> dst: array<f32>;
@group(0) @binding(2) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.rows) {
        return;
    }
    let x = src[idx];
    if (params.act == 1u) {
        dst[idx] = 1.0 / (1.0 + exp(-x));
    } else {
        dst[idx] = x;
    }
}
`

// forwardShader: y = W·x + b, one thread per row.
const forwardShader = `
@group(0) @binding(0) var<storage, read> w: array<f32>;
@group(0) @binding(1) var<storage, read> b: array<f32>;
@group(0) @binding(2) var<storage, read> x: array<f32>;
@group(0) @binding(3) var<storage, read_write> y: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let row = global_id.x;
    if (row >= params.rows) {
        return;
    }
    var sum = b[row];
    let base = row * params.cols;
    for (var c = 0u; c < params.cols; c = c + 1u) {
        sum = sum + w[base + c] * x[c];
    }
    y[row] = sum;
}
`

// seedShader: err = (out - desired) * act'(out).
const seedShader = `
@group(0) @binding(0) var<storage, read> out_: array<f32>;
@group(0) @binding(1) var<storage, read> desired: array<f32>;
@group(0) @binding(2) var<storage, read_write> err: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.rows) {
        return;
    }
    let o = out_[idx];
    var e = o - desired[idx];
    if (params.act == 1u) {
        e = e * o * (1.0 - o);
    }
    err[idx] = e;
}
`

// deriveShader: err = signal * act'(out).
const deriveShader = `
@group(0) @binding(0) var<storage, read> signal: array<f32>;
@group(0) @binding(1) var<storage, read> out_: array<f32>;
@group(0) @binding(2) var<storage, read_write> err: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.rows) {
        return;
    }
    var e = signal[idx];
    if (params.act == 1u) {
        let o = out_[idx];
        e = e * o * (1.0 - o);
    }
    err[idx] = e;
}
`

// backwardGradShader: dW += e ⊗ x, db += e, one thread per weight.
const backwardGradShader = `
@group(0) @binding(0) var<storage, read> e: array<f32>;
@group(0) @binding(1) var<storage, read> x: array<f32>;
@group(0) @binding(2) var<storage, read_write> dw: array<f32>;
@group(0) @binding(3) var<storage, read_write> db: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.rows * params.cols) {
        return;
    }
    let row = idx / params.cols;
    let col = idx % params.cols;
    dw[idx] = dw[idx] + e[row] * x[col];
    if (col == 0u) {
        db[row] = db[row] + e[row];
    }
}
`

// backwardPropShader: s = Wᵗ·e, one thread per column.
const backwardPropShader = `
@group(0) @binding(0) var<storage, read> w: array<f32>;
@group(0) @binding(1) var<storage, read> e: array<f32>;
@group(0) @binding(2) var<storage, read_write> s: array<f32>;
@group(0) @binding(3) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let col = global_id.x;
    if (col >= params.cols) {
        return;
    }
    var sum = 0.0;
    for (var r = 0u; r < params.rows; r = r + 1u) {
        sum = sum + w[r * params.cols + col] * e[r];
    }
    s[col] = sum;
}
`

// applyShader: W -= scale·dW, b -= scale·db, then zero the accumulators.
const applyShader = `
@group(0) @binding(0) var<storage, read_write> w: array<f32>;
@group(0) @binding(1) var<storage, read_write> dw: array<f32>;
@group(0) @binding(2) var<storage, read_write> b: array<f32>;
@group(0) @binding(3) var<storage, read_write> db: array<f32>;
@group(0) @binding(4) var<uniform> params: Params;
` + params + `
@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.rows * params.cols) {
        return;
    }
    w[idx] = w[idx] - params.scale * dw[idx];
    dw[idx] = 0.0;
    if (idx < params.rows) {
        b[idx] = b[idx] - params.scale * db[idx];
        db[idx] = 0.0;
    }
}
`

var shaderSources = map[device.Op]string{
	device.OpActivate:     activateShader,
	device.OpForward:      forwardShader,
	device.OpSeed:         seedShader,
	device.OpDerive:       deriveShader,
	device.OpBackwardGrad: backwardGradShader,
	device.OpBackwardProp: backwardPropShader,
	device.OpApply:        applyShader,
}
