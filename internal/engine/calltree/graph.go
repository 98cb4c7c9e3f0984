package calltree

// QualifiedMethod names a method by the class that owns its implementation.
type QualifiedMethod struct {
	Class  string
	Method string
}

// Root is the synthetic entry node; its only successor is the starting method.
var Root = QualifiedMethod{}

func (q QualifiedMethod) IsRoot() bool {
	return q == Root
}

func (q QualifiedMethod) String() string {
	if q.IsRoot() {
		return "<root>"
	}
	return q.Class + "." + q.Method
}

type edgeKey struct {
	from, to QualifiedMethod
}

// CallGraph is a directed graph that remembers the insertion order of nodes
// and of each node's successors. Adding an existing edge is a no-op.
type CallGraph struct {
	nodes []QualifiedMethod
	known map[QualifiedMethod]bool
	succ  map[QualifiedMethod][]QualifiedMethod
	edges map[edgeKey]bool
}

func NewCallGraph() *CallGraph {
	return &CallGraph{
		known: make(map[QualifiedMethod]bool),
		succ:  make(map[QualifiedMethod][]QualifiedMethod),
		edges: make(map[edgeKey]bool),
	}
}

func (g *CallGraph) AddNode(n QualifiedMethod) {
	if g.known[n] {
		return
	}
	g.known[n] = true
	g.nodes = append(g.nodes, n)
}

// AddEdge reports whether the edge was new.
func (g *CallGraph) AddEdge(from, to QualifiedMethod) bool {
	g.AddNode(from)
	g.AddNode(to)
	key := edgeKey{from: from, to: to}
	if g.edges[key] {
		return false
	}
	g.edges[key] = true
	g.succ[from] = append(g.succ[from], to)
	return true
}

func (g *CallGraph) HasEdge(from, to QualifiedMethod) bool {
	return g.edges[edgeKey{from: from, to: to}]
}

// Nodes returns every node, Root included, in insertion order.
func (g *CallGraph) Nodes() []QualifiedMethod {
	out := make([]QualifiedMethod, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Successors returns the callees of n in the order they were first seen.
func (g *CallGraph) Successors(n QualifiedMethod) []QualifiedMethod {
	out := make([]QualifiedMethod, len(g.succ[n]))
	copy(out, g.succ[n])
	return out
}

func (g *CallGraph) EdgeCount() int {
	return len(g.edges)
}

// Empty reports whether nothing beyond the root was added.
func (g *CallGraph) Empty() bool {
	return len(g.edges) == 0
}

// Edges walks the graph in node order and returns each edge once, Root
// edges included.
func (g *CallGraph) Edges() [][2]QualifiedMethod {
	out := make([][2]QualifiedMethod, 0, len(g.edges))
	for _, from := range g.nodes {
		for _, to := range g.succ[from] {
			out = append(out, [2]QualifiedMethod{from, to})
		}
	}
	return out
}
