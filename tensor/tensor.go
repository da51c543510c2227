// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the buffer contract shared by every backend.
package tensor

import (
	"github.com/born-ml/bpnet/internal/tensor"
)

// Buffer is a fixed-size float32 vector with host transfer semantics.
type Buffer = tensor.Buffer

// ErrSize is returned when a host slice does not match a buffer's width.
var ErrSize = tensor.ErrSize
