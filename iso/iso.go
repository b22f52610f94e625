// Package iso decides isomorphism of vertex-colored directed graphs and counts their automorphisms.
//
// Colors are first refined by the multisets of colors of out- and in-neighbors until stable,
// then a backtracking search maps vertices within refined classes, checking adjacency in both
// directions against every vertex already mapped.
package iso

import (
	"cmp"
	"math/big"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Colored is a directed graph whose vertices carry a color.
type Colored interface {
	graph.Directed
	Color(id int64) int
}

// Graph is a colored directed simple graph.
type Graph struct {
	*simple.DirectedGraph
	colors map[int64]int
}

func NewGraph() *Graph {
	return &Graph{DirectedGraph: simple.NewDirectedGraph(), colors: make(map[int64]int)}
}

// AddColored adds a vertex of the given color.
func (g *Graph) AddColored(id int64, color int) {
	g.AddNode(simple.Node(id))
	g.colors[id] = color
}

// Connect adds the edge from -> to. Both vertices must have been added.
func (g *Graph) Connect(from, to int64) {
	g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
}

func (g *Graph) Color(id int64) int { return g.colors[id] }

// Partition returns the vertex ids of each color, colors ascending.
func (g *Graph) Partition() [][]int64 {
	byColor := make(map[int][]int64)
	for id, c := range g.colors {
		byColor[c] = append(byColor[c], id)
	}
	colors := make([]int, 0, len(byColor))
	for c := range byColor {
		colors = append(colors, c)
	}
	slices.Sort(colors)

	p := make([][]int64, len(colors))
	for i, c := range colors {
		p[i] = byColor[c]
		slices.Sort(p[i])
	}
	return p
}

type dense struct {
	color []int
	adj   [][]bool
	out   [][]int
	in    [][]int
}

func densify(g Colored) *dense {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	slices.Sort(ids)
	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	d := &dense{
		color: make([]int, len(ids)),
		adj:   make([][]bool, len(ids)),
		out:   make([][]int, len(ids)),
		in:    make([][]int, len(ids)),
	}
	for i, id := range ids {
		d.color[i] = g.Color(id)
		d.adj[i] = make([]bool, len(ids))
	}
	for i, id := range ids {
		to := g.From(id)
		for to.Next() {
			j := index[to.Node().ID()]
			d.adj[i][j] = true
			d.out[i] = append(d.out[i], j)
			d.in[j] = append(d.in[j], i)
		}
	}
	return d
}

// refine replaces the colors of the graphs by their stable refinement.
// The graphs are refined together so that equal colors mean the same thing in all of them.
func refine(gs ...*dense) {
	classes := -1
	for {
		sigs := make([][]string, len(gs))
		distinct := make(map[string]bool)
		for k, g := range gs {
			sigs[k] = make([]string, len(g.color))
			for i := range g.color {
				sigs[k][i] = signature(g, i)
				distinct[sigs[k][i]] = true
			}
		}
		if len(distinct) == classes {
			return
		}
		classes = len(distinct)

		sorted := make([]string, 0, len(distinct))
		for s := range distinct {
			sorted = append(sorted, s)
		}
		slices.Sort(sorted)
		for k, g := range gs {
			for i := range g.color {
				g.color[i], _ = slices.BinarySearch(sorted, sigs[k][i])
			}
		}
	}
}

func signature(g *dense, i int) string {
	neighborColors := func(vs []int) string {
		cs := make([]int, len(vs))
		for k, v := range vs {
			cs[k] = g.color[v]
		}
		slices.Sort(cs)
		s := make([]string, len(cs))
		for k, c := range cs {
			s[k] = strconv.Itoa(c)
		}
		return strings.Join(s, ",")
	}
	return strconv.Itoa(g.color[i]) + "|" + neighborColors(g.out[i]) + "|" + neighborColors(g.in[i])
}

type matcher struct {
	a, b  *dense
	order []int
	image []int
	used  []bool
	count *big.Int
	// first stops the search at the first complete mapping.
	first bool
}

func newMatcher(a, b *dense, first bool) *matcher {
	size := make(map[int]int)
	for _, c := range a.color {
		size[c]++
	}
	order := make([]int, len(a.color))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return cmp.Compare(size[a.color[x]], size[a.color[y]])
	})

	m := &matcher{a: a, b: b, order: order, image: make([]int, len(a.color)), used: make([]bool, len(b.color)), count: big.NewInt(0), first: first}
	for i := range m.image {
		m.image[i] = -1
	}
	return m
}

func (m *matcher) search(k int) bool {
	if k == len(m.order) {
		m.count.Add(m.count, big.NewInt(1))
		return m.first
	}
	u := m.order[k]
	for v := range m.b.color {
		if m.used[v] || m.b.color[v] != m.a.color[u] || !m.consistent(u, v, k) {
			continue
		}
		m.image[u], m.used[v] = v, true
		if m.search(k + 1) {
			return true
		}
		m.image[u], m.used[v] = -1, false
	}
	return false
}

func (m *matcher) consistent(u, v, k int) bool {
	if m.a.adj[u][u] != m.b.adj[v][v] {
		return false
	}
	for _, w := range m.order[:k] {
		x := m.image[w]
		if m.a.adj[u][w] != m.b.adj[v][x] || m.a.adj[w][u] != m.b.adj[x][v] {
			return false
		}
	}
	return true
}

func sameColors(a, b *dense) bool {
	ca, cb := slices.Clone(a.color), slices.Clone(b.color)
	slices.Sort(ca)
	slices.Sort(cb)
	return slices.Equal(ca, cb)
}

// Isomorphic reports whether a vertex bijection preserving colors and edges exists between a and b.
func Isomorphic(a, b Colored) bool {
	da, db := densify(a), densify(b)
	if len(da.color) != len(db.color) || !sameColors(da, db) {
		return false
	}
	refine(da, db)
	if !sameColors(da, db) {
		return false
	}
	m := newMatcher(da, db, true)
	return m.search(0)
}

// Automorphisms returns the order of the group of color and edge preserving vertex permutations of g.
func Automorphisms(g Colored) *big.Int {
	da, db := densify(g), densify(g)
	refine(da, db)
	m := newMatcher(da, db, false)
	m.search(0)
	return m.count
}
