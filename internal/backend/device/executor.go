package device

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/nn"
)

// Op identifies a kernel body. Several kernel names share one body and
// differ only in Launch.Act.
type Op int

// Kernel bodies and their argument layouts.
const (
	// OpActivate: Args [in, out]; out = act(in); Rows = width.
	OpActivate Op = iota
	// OpForward: Args [W, b, x, y]; y = W·x + b; Rows x Cols = W.
	OpForward
	// OpSeed: Args [out, desired, err]; err = (out - desired) ⊙ act'(out).
	OpSeed
	// OpDerive: Args [signal, out, err]; err = signal ⊙ act'(out).
	OpDerive
	// OpBackwardGrad: Args [e, x, dW, db]; dW += e ⊗ x, db += e.
	OpBackwardGrad
	// OpBackwardProp: Args [W, e, s]; s = Wᵗ·e.
	OpBackwardProp
	// OpApply: Args [W, dW, b, db]; W -= Scale·dW, b -= Scale·db, zero dW, db.
	OpApply
)

var opArgs = [...]int{
	OpActivate:     2,
	OpForward:      4,
	OpSeed:         3,
	OpDerive:       3,
	OpBackwardGrad: 4,
	OpBackwardProp: 3,
	OpApply:        4,
}

// Memory is a device-resident region of float32 values.
type Memory interface {
	Len() int
}

// Launch describes one kernel invocation.
type Launch struct {
	Op    Op
	Args  []Memory
	Rows  int
	Cols  int
	Act   nn.Activation
	Scale float32
}

// Threads returns the number of invocations the kernel is dispatched over.
func (l Launch) Threads() int {
	switch l.Op {
	case OpBackwardGrad, OpApply:
		return l.Rows * l.Cols
	case OpBackwardProp:
		return l.Cols
	default:
		return l.Rows
	}
}

// Validate checks the argument count and the region sizes of l.
func (l Launch) Validate() error {
	if l.Op < 0 || int(l.Op) >= len(opArgs) {
		return errors.Errorf("unknown op %d", l.Op)
	}
	if len(l.Args) != opArgs[l.Op] {
		return errors.Errorf("op %d takes %d arguments, got %d", l.Op, opArgs[l.Op], len(l.Args))
	}
	var want []int
	r, c := l.Rows, l.Cols
	switch l.Op {
	case OpActivate:
		want = []int{r, r}
	case OpForward:
		want = []int{r * c, r, c, r}
	case OpSeed, OpDerive:
		want = []int{r, r, r}
	case OpBackwardGrad:
		want = []int{r, c, r * c, r}
	case OpBackwardProp:
		want = []int{r * c, r, c}
	case OpApply:
		want = []int{r * c, r * c, r, r}
	}
	for i, m := range l.Args {
		if m == nil || m.Len() != want[i] {
			return errors.Errorf("op %d argument %d: want %d values", l.Op, i, want[i])
		}
	}
	return nil
}

// Executor owns device memory and runs kernel bodies. Calls arrive from the
// queue worker only, one at a time, in enqueue order.
type Executor interface {
	Name() string
	Alloc(n int) (Memory, error)
	Free(m Memory) error
	Upload(dst Memory, src []float32) error
	Download(src Memory, dst []float32) error
	Run(l Launch) error
	Release() error
}
