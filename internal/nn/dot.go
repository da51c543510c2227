package nn

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/pkg/errors"
)

const dotGraph = "network"

// Dot renders the chain as a Graphviz digraph: one box per layer labelled
// with its width and functions, one edge per connection labelled with its
// weight shape.
func (n *Network) Dot() (string, error) {
	g := gographviz.NewGraph()
	if err := g.SetName(dotGraph); err != nil {
		return "", err
	}
	if err := g.SetDir(true); err != nil {
		return "", err
	}
	if err := g.AddAttr(dotGraph, "rankdir", "LR"); err != nil {
		return "", err
	}

	for _, l := range n.layers {
		label := fmt.Sprintf("layer %d\\n%d x %s", l.ID(), l.Size(), l.Activation())
		if l.CostFunc() != NoCost {
			label += "\\n" + l.CostFunc().String()
		}
		attrs := map[string]string{
			"shape": "box",
			"label": `"` + label + `"`,
		}
		if err := g.AddNode(dotGraph, layerNode(l.ID()), attrs); err != nil {
			return "", errors.Wrapf(err, "layer %d", l.ID())
		}
	}
	for k, c := range n.conns {
		attrs := map[string]string{
			"label": fmt.Sprintf("\"conn %d\\n%dx%d\"", c.ID(), c.DstSize(), c.SrcSize()),
		}
		if err := g.AddEdge(layerNode(k), layerNode(k+1), true, attrs); err != nil {
			return "", errors.Wrapf(err, "connection %d", c.ID())
		}
	}
	return g.String(), nil
}

func layerNode(id int) string {
	return fmt.Sprintf("L%d", id)
}
