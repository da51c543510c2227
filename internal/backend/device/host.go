package device

import (
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"

	"github.com/born-ml/bpnet/internal/parallel"
)

// HostExecutor emulates a device in host memory. Regions are private to the
// executor and only reachable through Upload and Download, so code written
// against it observes the same ordering rules as a real device. Matrix
// kernels split their rows across worker goroutines the way a device splits
// them across work-items.
type HostExecutor struct {
	limit int
	inUse int
	par   parallel.Config
}

type hostMemory struct {
	data []float32
}

func (m *hostMemory) Len() int { return len(m.data) }

// NewHostExecutor creates an emulated device. limit caps the total number of
// float32 values that may be allocated; 0 means unlimited.
func NewHostExecutor(limit int) *HostExecutor {
	return &HostExecutor{limit: limit, par: parallel.DefaultConfig()}
}

// SetParallel replaces the work splitting config.
func (e *HostExecutor) SetParallel(cfg parallel.Config) { e.par = cfg }

// Name returns the executor name.
func (e *HostExecutor) Name() string { return "host" }

// Alloc reserves a zeroed region of n values.
func (e *HostExecutor) Alloc(n int) (Memory, error) {
	if n <= 0 {
		return nil, errors.Errorf("alloc: size %d must be positive", n)
	}
	if e.limit > 0 && e.inUse+n > e.limit {
		return nil, errors.Errorf("alloc: %d values requested, %d of %d in use", n, e.inUse, e.limit)
	}
	e.inUse += n
	return &hostMemory{data: make([]float32, n)}, nil
}

// Free returns a region to the executor.
func (e *HostExecutor) Free(m Memory) error {
	hm, err := e.mem(m)
	if err != nil {
		return err
	}
	e.inUse -= len(hm.data)
	hm.data = nil
	return nil
}

// Upload copies src into dst.
func (e *HostExecutor) Upload(dst Memory, src []float32) error {
	hm, err := e.mem(dst)
	if err != nil {
		return err
	}
	if len(src) != len(hm.data) {
		return errors.Errorf("upload: %d values into region of %d", len(src), len(hm.data))
	}
	copy(hm.data, src)
	return nil
}

// Download copies src into dst.
func (e *HostExecutor) Download(src Memory, dst []float32) error {
	hm, err := e.mem(src)
	if err != nil {
		return err
	}
	if len(dst) != len(hm.data) {
		return errors.Errorf("download: region of %d into %d values", len(hm.data), len(dst))
	}
	copy(dst, hm.data)
	return nil
}

// Run executes one kernel body.
func (e *HostExecutor) Run(l Launch) error {
	if err := l.Validate(); err != nil {
		return err
	}
	args := make([][]float32, len(l.Args))
	for i, m := range l.Args {
		hm, err := e.mem(m)
		if err != nil {
			return err
		}
		args[i] = hm.data
	}
	rows, cols := l.Rows, l.Cols

	switch l.Op {
	case OpActivate:
		l.Act.Apply(args[0], args[1])
	case OpForward:
		w, b, x, y := args[0], args[1], args[2], args[3]
		parallel.For(rows, func(lo, hi int) {
			for r := lo; r < hi; r++ {
				sum := b[r]
				row := w[r*cols : (r+1)*cols]
				for c, v := range row {
					sum += v * x[c]
				}
				y[r] = sum
			}
		}, e.par)
	case OpSeed:
		out, desired, dst := args[0], args[1], args[2]
		for i, o := range out {
			dst[i] = o - desired[i]
		}
		l.Act.Derive(dst, out, dst)
	case OpDerive:
		l.Act.Derive(args[0], args[1], args[2])
	case OpBackwardGrad:
		delta, x, dw, db := args[0], args[1], args[2], args[3]
		parallel.For(rows, func(lo, hi int) {
			for r := lo; r < hi; r++ {
				er := delta[r]
				row := dw[r*cols : (r+1)*cols]
				for c := range row {
					row[c] += er * x[c]
				}
			}
		}, e.par)
		vecf32.Add(db, delta)
	case OpBackwardProp:
		w, delta, s := args[0], args[1], args[2]
		parallel.For(cols, func(lo, hi int) {
			for c := lo; c < hi; c++ {
				var sum float32
				for r := 0; r < rows; r++ {
					sum += w[r*cols+c] * delta[r]
				}
				s[c] = sum
			}
		}, e.par)
	case OpApply:
		w, dw, b, db := args[0], args[1], args[2], args[3]
		parallel.For(len(w), func(lo, hi int) {
			for i := lo; i < hi; i++ {
				w[i] -= l.Scale * dw[i]
			}
			clear(dw[lo:hi])
		}, e.par)
		for i := range b {
			b[i] -= l.Scale * db[i]
		}
		clear(db)
	}
	return nil
}

// Release drops every allocation.
func (e *HostExecutor) Release() error {
	e.inUse = 0
	return nil
}

func (e *HostExecutor) mem(m Memory) (*hostMemory, error) {
	hm, ok := m.(*hostMemory)
	if !ok || hm == nil {
		return nil, errors.Errorf("region %T does not belong to the host executor", m)
	}
	if hm.data == nil {
		return nil, errors.New("region used after free")
	}
	return hm, nil
}
