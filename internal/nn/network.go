package nn

import (
	"github.com/pkg/errors"
)

// Network is an ordered chain of layers joined by connections.
//
// Execution is issued stage by stage. A full forward pass is Len() calls
// to StepForward; a full backward pass is Len()-1 calls to StepBackward.
// On an asynchronous backend a step only enqueues work, so results must be
// read after Flush (or through a blocking Buffer.Read).
//
// The network does not count examples: the driver decides when to call
// CommitGrad and with which batch size.
type Network struct {
	factory  Factory
	layers   []Layer
	conns    []Connection
	incoming map[int]int

	validated bool
	fwdStage  int
	bwdStage  int
}

// NewNetwork creates an empty network whose layers come from f.
func NewNetwork(f Factory) *Network {
	return &Network{
		factory:  f,
		incoming: make(map[int]int),
	}
}

// Factory returns the backend the network was created with.
func (n *Network) Factory() Factory { return n.factory }

// Len returns the number of layers.
func (n *Network) Len() int { return len(n.layers) }

// Layers returns the layers in chain order.
func (n *Network) Layers() []Layer { return n.layers }

// Conns returns the connections in chain order.
func (n *Network) Conns() []Connection { return n.conns }

// InputLayer returns layer 0, or nil for an empty network.
func (n *Network) InputLayer() Layer {
	if len(n.layers) == 0 {
		return nil
	}
	return n.layers[0]
}

// OutputLayer returns the last layer, or nil for an empty network.
func (n *Network) OutputLayer() Layer {
	if len(n.layers) == 0 {
		return nil
	}
	return n.layers[len(n.layers)-1]
}

// AddLayer appends l to the chain. Its ID must equal its position.
func (n *Network) AddLayer(l Layer) error {
	if l == nil {
		return ConfigErrorf("nil layer")
	}
	if l.ID() != len(n.layers) {
		return ConfigErrorf("layer id %d added at position %d", l.ID(), len(n.layers))
	}
	if l.ID() == 0 && l.CostFunc() != NoCost {
		return ConfigErrorf("input layer cannot carry a %s cost", l.CostFunc())
	}
	n.layers = append(n.layers, l)
	n.validated = false
	return nil
}

// AddConn appends c between layers src and dst.
//
// Connections must be added in chain order: the k-th connection joins layer
// k to layer k+1. A destination may have only one incoming connection.
func (n *Network) AddConn(c Connection, src, dst int) error {
	if c == nil {
		return ConfigErrorf("nil connection")
	}
	if prev, ok := n.incoming[dst]; ok {
		return ConfigErrorf("layer %d already has incoming connection %d", dst, prev)
	}
	if c.ID() != len(n.conns) {
		return ConfigErrorf("connection id %d added at position %d", c.ID(), len(n.conns))
	}
	if src != len(n.conns) || dst != src+1 {
		return ConfigErrorf("connection %d: %d -> %d breaks the chain, want %d -> %d",
			c.ID(), src, dst, len(n.conns), len(n.conns)+1)
	}
	if dst >= len(n.layers) {
		return ConfigErrorf("connection %d: layer %d not declared", c.ID(), dst)
	}
	from, to := n.layers[src], n.layers[dst]
	if c.SrcSize() != from.Size() || c.DstSize() != to.Size() {
		return ConfigErrorf("connection %d: shape %dx%d does not join layers of size %d and %d",
			c.ID(), c.DstSize(), c.SrcSize(), from.Size(), to.Size())
	}
	if err := c.Bind(from, to); err != nil {
		return err
	}
	n.conns = append(n.conns, c)
	n.incoming[dst] = c.ID()
	n.validated = false
	return nil
}

// Validate checks that the chain is complete and ends in a costed layer.
func (n *Network) Validate() error {
	if n.validated {
		return nil
	}
	if len(n.layers) < 2 {
		return ConfigErrorf("network needs at least 2 layers, has %d", len(n.layers))
	}
	if len(n.conns) != len(n.layers)-1 {
		return ConfigErrorf("%d layers joined by %d connections, want %d",
			len(n.layers), len(n.conns), len(n.layers)-1)
	}
	if out := n.OutputLayer(); out.CostFunc() == NoCost {
		return ConfigErrorf("output layer %d has no cost", out.ID())
	}
	n.validated = true
	return nil
}

// Reset rewinds both pipeline phases to stage 0.
func (n *Network) Reset() {
	n.fwdStage = 0
	n.bwdStage = 0
}

// StepForward advances the forward wavefront by one stage: stage k
// activates layer k and, unless k is the output layer, runs connection k
// into layer k+1. After the output stage the phase wraps to 0.
func (n *Network) StepForward() error {
	if err := n.Validate(); err != nil {
		return err
	}
	k := n.fwdStage
	if err := n.layers[k].Activate(); err != nil {
		return errors.Wrapf(err, "forward stage %d: activate", k)
	}
	if k < len(n.conns) {
		if err := n.conns[k].Forward(); err != nil {
			return errors.Wrapf(err, "forward stage %d: connection", k)
		}
	}
	n.fwdStage = (k + 1) % len(n.layers)
	return nil
}

// StepBackward advances the backward wavefront by one stage. The first
// stage seeds the output layer's error from its cost; every stage then runs
// the connection feeding the current layer backwards and applies the
// activation derivative of its source, except on the input layer.
func (n *Network) StepBackward() error {
	if err := n.Validate(); err != nil {
		return err
	}
	j := n.bwdStage
	d := len(n.layers) - 1 - j
	if j == 0 {
		if err := n.layers[d].SeedError(); err != nil {
			return errors.Wrapf(err, "backward stage %d: seed", j)
		}
	}
	if err := n.conns[d-1].Backward(); err != nil {
		return errors.Wrapf(err, "backward stage %d: connection", j)
	}
	if d-1 > 0 {
		if err := n.layers[d-1].Backprop(); err != nil {
			return errors.Wrapf(err, "backward stage %d: derivative", j)
		}
	}
	n.bwdStage = (j + 1) % len(n.conns)
	return nil
}

// Forward issues the remaining stages of the current forward pass (all of
// them from phase 0) and flushes the backend so Output is readable.
func (n *Network) Forward() error {
	for {
		if err := n.StepForward(); err != nil {
			return err
		}
		if n.fwdStage == 0 {
			break
		}
	}
	return n.Flush()
}

// Backward issues the remaining stages of the current backward pass.
func (n *Network) Backward() error {
	for {
		if err := n.StepBackward(); err != nil {
			return err
		}
		if n.bwdStage == 0 {
			return nil
		}
	}
}

// Flush blocks until the backend has executed everything issued so far.
func (n *Network) Flush() error {
	return n.factory.Finish()
}

// CommitGrad applies the accumulated gradients of every connection,
// averaged over batchSize examples, and resets the accumulators.
func (n *Network) CommitGrad(rate float32, batchSize int) error {
	if batchSize < 1 {
		return errors.Errorf("commit: batch size %d must be positive", batchSize)
	}
	for _, c := range n.conns {
		if err := c.ApplyGradient(rate, batchSize); err != nil {
			return errors.Wrapf(err, "commit: connection %d", c.ID())
		}
	}
	return nil
}

// ForLayers calls fn on every layer in order and stops at the first error.
func (n *Network) ForLayers(fn func(Layer) error) error {
	for _, l := range n.layers {
		if err := fn(l); err != nil {
			return err
		}
	}
	return nil
}

// ForConns calls fn on every connection in order and stops at the first
// error.
func (n *Network) ForConns(fn func(Connection) error) error {
	for _, c := range n.conns {
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}

// Release frees every connection, then every layer.
func (n *Network) Release() error {
	if err := n.ForConns(Connection.Release); err != nil {
		return err
	}
	return n.ForLayers(Layer.Release)
}

// NewChain assembles and validates a network of the given widths on f.
// Layer 0 is the identity input, every other layer is sigmoid, and the last
// one carries cost. Parameters are randomized from f's initializer. On
// failure everything built so far is released.
func NewChain(f Factory, sizes []int, cost Cost) (net *Network, err error) {
	if len(sizes) < 2 {
		return nil, ConfigErrorf("network needs at least 2 layers, has %d", len(sizes))
	}
	net = NewNetwork(f)
	defer func() {
		if err != nil {
			_ = net.Release()
			net = nil
		}
	}()
	for id, size := range sizes {
		var l Layer
		switch {
		case id == 0:
			l, err = f.NewInputLayer(id, size)
		case id == len(sizes)-1:
			l, err = f.NewLayer(id, size, Sigmoid, cost)
		default:
			l, err = f.NewLayer(id, size, Sigmoid, NoCost)
		}
		if err != nil {
			return net, err
		}
		if err = net.AddLayer(l); err != nil {
			_ = l.Release()
			return net, err
		}
	}
	for id := 0; id < len(sizes)-1; id++ {
		var c Connection
		if c, err = f.NewConnection(id, sizes[id], sizes[id+1]); err != nil {
			return net, err
		}
		if err = net.AddConn(c, id, id+1); err != nil {
			_ = c.Release()
			return net, err
		}
		if err = c.RandomizeWeight(); err != nil {
			return net, err
		}
		if err = c.RandomizeBias(); err != nil {
			return net, err
		}
	}
	return net, net.Validate()
}
