package device

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Kernel names issued by the device layers and connections.
const (
	KernelActivateIdentity = "activate_identity"
	KernelActivateSigmoid  = "activate_sigmoid"
	KernelConnForward      = "conn_forward"
	KernelSeedCrossEntropy = "seed_cross_entropy"
	KernelSeedQuadratic    = "seed_quadratic"
	KernelDeriveIdentity   = "derive_identity"
	KernelDeriveSigmoid    = "derive_sigmoid"
	KernelBackwardGrad     = "conn_backward_grad"
	KernelBackwardProp     = "conn_backward_prop"
	KernelConnApply        = "conn_apply"
)

// Kernel is a named device kernel with cumulative profiling counters.
type Kernel struct {
	name  string
	nanos atomic.Int64
	count atomic.Int64
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Time returns the total execution time since the last ClearCounter.
func (k *Kernel) Time() time.Duration { return time.Duration(k.nanos.Load()) }

// Count returns the number of completed invocations since the last
// ClearCounter.
func (k *Kernel) Count() int { return int(k.count.Load()) }

// ClearCounter zeroes both counters.
func (k *Kernel) ClearCounter() {
	k.nanos.Store(0)
	k.count.Store(0)
}

func (k *Kernel) record(d time.Duration) {
	k.nanos.Add(int64(d))
	k.count.Add(1)
}

// KernelStat is a snapshot of one kernel's counters.
type KernelStat struct {
	Name  string
	Time  time.Duration
	Count int
}

// Program is the set of kernels known to a factory.
type Program struct {
	mu      sync.Mutex
	kernels map[string]*Kernel
}

// NewProgram registers the given kernel names.
func NewProgram(names ...string) *Program {
	p := &Program{kernels: make(map[string]*Kernel, len(names))}
	for _, name := range names {
		p.Kernel(name)
	}
	return p
}

// Kernel returns the kernel called name, registering it on first use.
func (p *Program) Kernel(name string) *Kernel {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.kernels[name]
	if !ok {
		k = &Kernel{name: name}
		p.kernels[name] = k
	}
	return k
}

// Kernels returns every kernel sorted by name.
func (p *Program) Kernels() []*Kernel {
	p.mu.Lock()
	ks := make([]*Kernel, 0, len(p.kernels))
	for _, k := range p.kernels {
		ks = append(ks, k)
	}
	p.mu.Unlock()
	sort.Slice(ks, func(i, j int) bool { return ks[i].name < ks[j].name })
	return ks
}

// Profile snapshots every kernel's counters, sorted by name.
func (p *Program) Profile() []KernelStat {
	ks := p.Kernels()
	stats := make([]KernelStat, len(ks))
	for i, k := range ks {
		stats[i] = KernelStat{Name: k.name, Time: k.Time(), Count: k.Count()}
	}
	return stats
}

// Reset clears the counters of every kernel.
func (p *Program) Reset() {
	for _, k := range p.Kernels() {
		k.ClearCounter()
	}
}

func defaultKernels() []string {
	return []string{
		KernelActivateIdentity,
		KernelActivateSigmoid,
		KernelConnForward,
		KernelSeedCrossEntropy,
		KernelSeedQuadratic,
		KernelDeriveIdentity,
		KernelDeriveSigmoid,
		KernelBackwardGrad,
		KernelBackwardProp,
		KernelConnApply,
	}
}
