package regall

import (
	"github.com/raymyers/prevc/pkg/asm"
	"github.com/raymyers/prevc/pkg/mem"
)

// nodeState is the allocator set a node belongs to.
type nodeState int

const (
	stateInitial nodeState = iota
	stateSimplify
	stateSpill
	stateSelected
	stateColored
	stateSpilled
)

const noColor = -1

type node struct {
	temp      mem.Temp
	adj       map[int]struct{}
	neighbors []int // adj in insertion order
	degree    int   // neighbors not yet selected
	state     nodeState
	color     int
}

// graph is an interference graph over the temps of one function. Nodes are
// numbered in order of first appearance; edges are index pairs.
type graph struct {
	k     int
	nodes []node
	index map[mem.Temp]int

	simplify []int // may hold stale entries; state decides membership
	selected []int

	// avoid lists temps that are poor spill candidates.
	avoid asm.TempSet
}

func newGraph(k int, avoid asm.TempSet) *graph {
	return &graph{k: k, index: make(map[mem.Temp]int), avoid: avoid}
}

func (g *graph) addNode(t mem.Temp) {
	if _, ok := g.index[t]; ok {
		return
	}
	g.index[t] = len(g.nodes)
	g.nodes = append(g.nodes, node{temp: t, adj: make(map[int]struct{}), color: noColor})
}

func (g *graph) addEdge(u, v mem.Temp) {
	i, ok1 := g.index[u]
	j, ok2 := g.index[v]
	if !ok1 || !ok2 || i == j {
		return
	}
	if _, ok := g.nodes[i].adj[j]; ok {
		return
	}
	g.nodes[i].adj[j] = struct{}{}
	g.nodes[j].adj[i] = struct{}{}
	g.nodes[i].neighbors = append(g.nodes[i].neighbors, j)
	g.nodes[j].neighbors = append(g.nodes[j].neighbors, i)
	g.nodes[i].degree++
	g.nodes[j].degree++
}

// build creates one node per temp used or defined in instrs, except fp.
// Temps interfere when both are live out of the same instruction, and a
// defined temp interferes with everything live out of its definition.
func build(instrs []asm.Instr, fp mem.Temp, k int, avoid asm.TempSet) *graph {
	g := newGraph(k, avoid)

	for _, instr := range instrs {
		for _, t := range instr.Uses() {
			if t != fp {
				g.addNode(t)
			}
		}
		for _, t := range instr.Defs() {
			if t != fp {
				g.addNode(t)
			}
		}
	}

	for _, instr := range instrs {
		out := instr.Live().Out.Slice()
		for a, u := range out {
			for _, v := range out[a+1:] {
				if u != fp && v != fp {
					g.addEdge(u, v)
				}
			}
		}
		for _, d := range instr.Defs() {
			for _, v := range out {
				if d != fp && v != fp {
					g.addEdge(d, v)
				}
			}
		}
	}

	return g
}

func (g *graph) makeWorklists() {
	for i := range g.nodes {
		if g.nodes[i].degree >= g.k {
			g.nodes[i].state = stateSpill
		} else {
			g.nodes[i].state = stateSimplify
			g.simplify = append(g.simplify, i)
		}
	}
}

// popSimplify returns a low-degree node, or -1.
func (g *graph) popSimplify() int {
	for len(g.simplify) > 0 {
		i := g.simplify[len(g.simplify)-1]
		g.simplify = g.simplify[:len(g.simplify)-1]
		if g.nodes[i].state == stateSimplify {
			return i
		}
	}
	return -1
}

// pickSpill returns the potential spill to remove next, or -1. Temps
// created by earlier spill rounds are chosen last, then higher degree first.
func (g *graph) pickSpill() int {
	best := -1
	for i := range g.nodes {
		n := &g.nodes[i]
		if n.state != stateSpill {
			continue
		}
		if best < 0 || g.spillBefore(n, &g.nodes[best]) {
			best = i
		}
	}
	return best
}

func (g *graph) spillBefore(a, b *node) bool {
	aa, ba := g.avoid.Contains(a.temp), g.avoid.Contains(b.temp)
	if aa != ba {
		return !aa
	}
	return a.degree > b.degree
}

// remove pushes node i onto the select stack and detaches it from its
// remaining neighbors.
func (g *graph) remove(i int) {
	g.nodes[i].state = stateSelected
	g.selected = append(g.selected, i)

	for _, j := range g.nodes[i].neighbors {
		m := &g.nodes[j]
		if m.state == stateSelected {
			continue
		}
		m.degree--
		if m.degree == g.k-1 && m.state == stateSpill {
			m.state = stateSimplify
			g.simplify = append(g.simplify, j)
		}
	}
}

// reduce empties the worklists onto the select stack.
func (g *graph) reduce() {
	g.makeWorklists()
	for {
		if i := g.popSimplify(); i >= 0 {
			g.remove(i)
			continue
		}
		if i := g.pickSpill(); i >= 0 {
			g.remove(i)
			continue
		}
		return
	}
}

// assignColors pops the select stack giving every node the lowest color
// not used by a colored neighbor. It returns the temps left uncolored.
func (g *graph) assignColors() []mem.Temp {
	var spilled []mem.Temp

	used := make([]bool, g.k)
	for len(g.selected) > 0 {
		i := g.selected[len(g.selected)-1]
		g.selected = g.selected[:len(g.selected)-1]
		n := &g.nodes[i]

		for c := range used {
			used[c] = false
		}
		for _, j := range n.neighbors {
			if m := &g.nodes[j]; m.state == stateColored {
				used[m.color] = true
			}
		}

		for c, u := range used {
			if !u {
				n.color = c
				n.state = stateColored
				break
			}
		}
		if n.state != stateColored {
			n.state = stateSpilled
			spilled = append(spilled, n.temp)
		}
	}

	return spilled
}
