package diagram

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// Class is the connectivity class of a stationarity diagram.
type Class int

const (
	ConnectedStrong Class = iota
	ConnectedWeak
	DisconnectedStrong
	DisconnectedWeak
)

// Classes lists every class in output order.
var Classes = []Class{ConnectedStrong, ConnectedWeak, DisconnectedStrong, DisconnectedWeak}

func (c Class) String() string {
	switch c {
	case ConnectedStrong:
		return "Connected (Strong)"
	case ConnectedWeak:
		return "Connected (Weak)"
	case DisconnectedStrong:
		return "Disconnected (Strong)"
	case DisconnectedWeak:
		return "Disconnected (Weak)"
	default:
		return "unknown"
	}
}

// Connected reports whether diagrams of class c are tensorially connected.
func (c Class) Connected() bool { return c == ConnectedStrong || c == ConnectedWeak }

// Strong reports whether diagrams of class c are strongly connected.
func (c Class) Strong() bool { return c == ConnectedStrong || c == DisconnectedStrong }

// ParseClass is the inverse of Class.String.
func ParseClass(s string) (Class, bool) {
	for _, c := range Classes {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// contractionGraph has an edge in each direction between every pair of contracted operators.
func (d Diagram) contractionGraph() *simple.DirectedGraph {
	g := simple.NewDirectedGraph()
	for i := range d.Operators {
		g.AddNode(simple.Node(i))
	}
	for i, op := range d.Operators {
		for _, r := range []Row{op.Upper, op.Lower} {
			for l := range r {
				if l.Partner == Free || l.Partner == i || l.Partner >= len(d.Operators) {
					continue
				}
				g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(l.Partner)})
				g.SetEdge(simple.Edge{F: simple.Node(l.Partner), T: simple.Node(i)})
			}
		}
	}
	return g
}

// connected reports whether every operator is either in barrier or reachable from seeds by a path
// that does not pass through barrier.
func (d Diagram) connected(barrier map[int]bool, seeds ...int) bool {
	g := d.contractionGraph()
	bfs := traverse.BreadthFirst{
		Traverse: func(e graph.Edge) bool { return !barrier[int(e.To().ID())] },
	}
	for _, s := range seeds {
		bfs.Walk(g, simple.Node(s), nil)
	}
	for i := range d.Operators {
		if !barrier[i] && !bfs.Visited(simple.Node(i)) {
			return false
		}
	}
	return true
}

// IsTensoriallyConnected reports whether the operators other than the central one form a single
// connected tensor, that is whether all of them connect to operator 1 without passing through operator 0.
func (d Diagram) IsTensoriallyConnected() bool {
	if len(d.Operators) < 2 {
		return true
	}
	return d.connected(map[int]bool{0: true, 1: true}, 1)
}

// IsConnectedWithout reports whether all operators still connect to operator 0 once operator k is removed.
func (d Diagram) IsConnectedWithout(k int) bool {
	return d.connected(map[int]bool{0: true, k: true}, 0)
}

// IsStronglyConnected reports whether the diagram stays connected after removing any single non-central operator.
func (d Diagram) IsStronglyConnected() bool {
	for k := 1; k < len(d.Operators); k++ {
		if !d.IsConnectedWithout(k) {
			return false
		}
	}
	return true
}

func (d Diagram) Class() Class {
	switch connected, strong := d.IsTensoriallyConnected(), d.IsStronglyConnected(); {
	case connected && strong:
		return ConnectedStrong
	case connected:
		return ConnectedWeak
	case strong:
		return DisconnectedStrong
	default:
		return DisconnectedWeak
	}
}
