package serialization

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/born-ml/bpnet/internal/nn"
)

const (
	formatKey   = "format"
	formatValue = "bpnet"
	sizesKey    = "sizes"
)

func weightName(c nn.Connection) string { return fmt.Sprintf("conn%d.weight", c.ID()) }
func biasName(c nn.Connection) string   { return fmt.Sprintf("conn%d.bias", c.ID()) }

// StateDict reads every connection's weight and bias.
// On the device backend the reads wait for queued work.
func StateDict(net *nn.Network) ([]Tensor, error) {
	var tensors []Tensor
	err := net.ForConns(func(c nn.Connection) error {
		w := make([]float32, c.Weight().Len())
		if err := c.Weight().Read(w); err != nil {
			return fmt.Errorf("read %s: %w", weightName(c), err)
		}
		b := make([]float32, c.Bias().Len())
		if err := c.Bias().Read(b); err != nil {
			return fmt.Errorf("read %s: %w", biasName(c), err)
		}
		tensors = append(tensors,
			Tensor{Name: weightName(c), Shape: []int{c.DstSize(), c.SrcSize()}, Data: w},
			Tensor{Name: biasName(c), Shape: []int{c.DstSize()}, Data: b},
		)
		return nil
	})
	return tensors, err
}

// LoadStateDict writes tensors into the matching connections of net.
// Every connection must be present with its exact shape.
func LoadStateDict(net *nn.Network, tensors map[string]Tensor) error {
	return net.ForConns(func(c nn.Connection) error {
		if err := load(tensors, weightName(c), []int{c.DstSize(), c.SrcSize()}, c.Weight().Write); err != nil {
			return err
		}
		return load(tensors, biasName(c), []int{c.DstSize()}, c.Bias().Write)
	})
}

func load(tensors map[string]Tensor, name string, shape []int, write func([]float32) error) error {
	t, ok := tensors[name]
	if !ok {
		return &ValidationError{Err: ErrMissingTensor, Tensor: name, Details: "not in state dict"}
	}
	if !slices.Equal(t.Shape, shape) {
		return &ValidationError{Err: ErrShapeMismatch, Tensor: name,
			Details: fmt.Sprintf("file has %v, network wants %v", t.Shape, shape)}
	}
	if err := write(t.Data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Sizes formats the layer widths of net the way they are stored in metadata.
func Sizes(net *nn.Network) string {
	parts := make([]string, 0, net.Len())
	for _, l := range net.Layers() {
		parts = append(parts, strconv.Itoa(l.Size()))
	}
	return strings.Join(parts, ",")
}

// SaveNetwork writes the parameters of net to path.
func SaveNetwork(path string, net *nn.Network) error {
	tensors, err := StateDict(net)
	if err != nil {
		return err
	}

	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	meta := map[string]string{formatKey: formatValue, sizesKey: Sizes(net)}
	if err := WriteSafeTensors(file, tensors, meta); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// LoadNetwork reads parameters from path into net. The stored layer widths
// must match the network.
func LoadNetwork(path string, net *nn.Network) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	tensors, meta, err := ReadSafeTensors(file)
	if err != nil {
		return err
	}
	if sizes, ok := meta[sizesKey]; ok && sizes != Sizes(net) {
		return &ValidationError{Err: ErrShapeMismatch,
			Details: fmt.Sprintf("file holds layers %s, network has %s", sizes, Sizes(net))}
	}
	return LoadStateDict(net, tensors)
}
