package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"
)

const (
	metadataKey   = "__metadata__"
	checksumKey   = "sha256"
	dtypeF32      = "F32"
	maxHeaderSize = 100 * 1024 * 1024
)

// Tensor is a named float32 array with its shape.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float32
}

// NumElements returns the product of the shape.
func (t Tensor) NumElements() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// WriteSafeTensors writes tensors to w. Tensors are written in alphabetical
// order by name and a checksum of the data section is added to metadata.
func WriteSafeTensors(w io.Writer, tensors []Tensor, metadata map[string]string) error {
	sorted := make([]Tensor, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	header := make(map[string]any, len(sorted)+1)
	var data []byte
	for _, t := range sorted {
		if t.Name == metadataKey {
			return fmt.Errorf("reserved tensor name %q", t.Name)
		}
		if t.NumElements() != len(t.Data) {
			return &ValidationError{Err: ErrShapeMismatch, Tensor: t.Name,
				Details: fmt.Sprintf("shape %v holds %d values, got %d", t.Shape, t.NumElements(), len(t.Data))}
		}
		start := int64(len(data))
		for _, v := range t.Data {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(v))
		}
		shape := make([]int64, len(t.Shape))
		for i, d := range t.Shape {
			shape[i] = int64(d)
		}
		header[t.Name] = SafeTensorHeader{
			DType:       dtypeF32,
			Shape:       shape,
			DataOffsets: [2]int64{start, int64(len(data))},
		}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[checksumKey] = ComputeChecksum(data)
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// ReadSafeTensors reads every tensor and the metadata from r. The checksum
// is verified when the file carries one.
func ReadSafeTensors(r io.Reader) (map[string]Tensor, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > maxHeaderSize {
		return nil, nil, ErrHeaderTooLarge
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	var metadata map[string]string
	if m, ok := raw[metadataKey]; ok {
		if err := json.Unmarshal(m, &metadata); err != nil {
			return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
		delete(raw, metadataKey)
	}
	if sum, ok := metadata[checksumKey]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, nil, err
		}
	}

	headers := make(map[string]SafeTensorHeader, len(raw))
	for name, msg := range raw {
		var h SafeTensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		headers[name] = h
	}
	if err := validateHeaders(headers, int64(len(data))); err != nil {
		return nil, nil, err
	}

	tensors := make(map[string]Tensor, len(headers))
	for name, h := range headers {
		t := Tensor{Name: name, Shape: make([]int, len(h.Shape))}
		for i, d := range h.Shape {
			t.Shape[i] = int(d)
		}
		section := data[h.DataOffsets[0]:h.DataOffsets[1]]
		t.Data = make([]float32, len(section)/4)
		for i := range t.Data {
			t.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(section[4*i:]))
		}
		tensors[name] = t
	}
	return tensors, metadata, nil
}

func validateHeaders(headers map[string]SafeTensorHeader, dataSize int64) error {
	names := make([]string, 0, len(headers))
	for name, h := range headers {
		if h.DType != dtypeF32 {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: h.DType}
		}
		start, end := h.DataOffsets[0], h.DataOffsets[1]
		if start < 0 || end < start || end > dataSize {
			return &ValidationError{Err: ErrOutOfBounds, Tensor: name,
				Details: fmt.Sprintf("offsets [%d, %d) with %d data bytes", start, end, dataSize)}
		}
		n := int64(4)
		for _, d := range h.Shape {
			if d < 0 {
				return &ValidationError{Err: ErrShapeMismatch, Tensor: name, Details: "negative dimension"}
			}
			n *= d
		}
		if n != end-start {
			return &ValidationError{Err: ErrShapeMismatch, Tensor: name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", h.Shape, n, end-start)}
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return headers[names[i]].DataOffsets[0] < headers[names[j]].DataOffsets[0]
	})
	for i := 1; i < len(names); i++ {
		prev, cur := headers[names[i-1]], headers[names[i]]
		if cur.DataOffsets[0] < prev.DataOffsets[1] {
			return &ValidationError{Err: ErrOffsetOverlap, Tensor: names[i],
				Details: fmt.Sprintf("overlaps %q", names[i-1])}
		}
	}
	return nil
}
