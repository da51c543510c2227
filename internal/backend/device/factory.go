package device

import (
	"github.com/pkg/errors"

	"github.com/born-ml/bpnet/internal/nn"
)

// Factory builds layers and connections whose operations run as kernels on
// one ordered queue. It owns the queue, the executor and the kernel
// profiling counters; the network built from it must not outlive it.
type Factory struct {
	exec    Executor
	queue   *Queue
	program *Program
	init    *nn.Initializer
}

// Option configures a Factory.
type Option func(*Factory)

// WithSeed sets the seed of the weight and bias initializer.
func WithSeed(seed int64) Option {
	return func(f *Factory) {
		f.init = nn.NewInitializer(seed)
	}
}

// NewFactory creates a device factory on exec. A nil exec selects the
// emulated HostExecutor.
func NewFactory(exec Executor, opts ...Option) *Factory {
	if exec == nil {
		exec = NewHostExecutor(0)
	}
	f := &Factory{
		exec:    exec,
		queue:   NewQueue(),
		program: NewProgram(defaultKernels()...),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.init == nil {
		f.init = nn.NewInitializer(nn.DefaultSeed)
	}
	return f
}

// Name returns the backend name including the executor.
func (f *Factory) Name() string {
	return "device/" + f.exec.Name()
}

// Program returns the kernel set with its profiling counters.
func (f *Factory) Program() *Program { return f.program }

// Profile snapshots the per-kernel duration and invocation counters.
func (f *Factory) Profile() []KernelStat { return f.program.Profile() }

// ResetProfile zeroes every kernel counter. Weights are not touched.
func (f *Factory) ResetProfile() { f.program.Reset() }

// Finish blocks until the queue has drained.
func (f *Factory) Finish() error {
	return f.queue.Finish()
}

// Release drains and closes the queue, then releases the executor.
func (f *Factory) Release() error {
	qerr := f.queue.Close()
	if err := f.exec.Release(); err != nil && qerr == nil {
		return err
	}
	return qerr
}

// NewInputLayer creates an identity layer without cost.
func (f *Factory) NewInputLayer(id, size int) (nn.Layer, error) {
	return f.newLayer(id, size, nn.Identity, nn.NoCost)
}

// NewLayer creates a layer with the given activation and cost.
func (f *Factory) NewLayer(id, size int, act nn.Activation, cost nn.Cost) (nn.Layer, error) {
	return f.newLayer(id, size, act, cost)
}

func (f *Factory) newLayer(id, size int, act nn.Activation, cost nn.Cost) (*Layer, error) {
	if err := nn.ValidateLayer(id, size, act, cost); err != nil {
		return nil, err
	}
	l := &Layer{f: f, id: id, size: size, act: act, cost: cost}
	bufs := []**Buffer{&l.input, &l.output, &l.err, &l.signal}
	if cost != nn.NoCost {
		bufs = append(bufs, &l.desired)
	}
	for _, p := range bufs {
		b, err := f.newBuffer(size)
		if err != nil {
			_ = l.Release()
			return nil, errors.Wrapf(err, "layer %d", id)
		}
		*p = b
	}
	return l, nil
}

// NewConnection creates a zero-initialized dstSize x srcSize connection.
func (f *Factory) NewConnection(id, srcSize, dstSize int) (nn.Connection, error) {
	if err := nn.ValidateConnection(id, srcSize, dstSize); err != nil {
		return nil, err
	}
	c := &Connection{f: f, id: id, srcSize: srcSize, dstSize: dstSize}
	shapes := []struct {
		p *(*Buffer)
		n int
	}{
		{&c.weight, dstSize * srcSize},
		{&c.bias, dstSize},
		{&c.weightGrad, dstSize * srcSize},
		{&c.biasGrad, dstSize},
	}
	for _, s := range shapes {
		b, err := f.newBuffer(s.n)
		if err != nil {
			_ = c.Release()
			return nil, errors.Wrapf(err, "connection %d", id)
		}
		*s.p = b
	}
	return c, nil
}

// newBuffer allocates synchronously so that allocation failures surface at
// construction time. Regions start zeroed.
func (f *Factory) newBuffer(n int) (*Buffer, error) {
	if err := f.queue.Err(); err != nil {
		return nil, err
	}
	var mem Memory
	err := f.queue.Enqueue(nil, "alloc", func() error {
		var err error
		mem, err = f.exec.Alloc(n)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := f.queue.Finish(); err != nil {
		return nil, err
	}
	return &Buffer{f: f, mem: mem, n: n}, nil
}

func (f *Factory) launch(name string, l Launch) error {
	return f.queue.Enqueue(f.program.Kernel(name), name, func() error {
		return f.exec.Run(l)
	})
}
