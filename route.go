package pacesim

// route.go holds the testbed graph and the computation of the path a
// direction's traffic takes through it.

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// linkKey identifies an undirected link by the ids of its end nodes, smaller first
type linkKey struct {
	a, b int
}

func makeLinkKey(a, b int) linkKey {
	if b < a {
		a, b = b, a
	}
	return linkKey{a: a, b: b}
}

// edgeParams are the run-time parameters of a testbed link
type edgeParams struct {
	bndwdth float64 // bits per second
	latency float64 // seconds
}

// Topology is the run-time representation of the testbed links
type Topology struct {
	idByName  map[string]int
	nameByID  map[int]string
	links     map[linkKey]edgeParams
	connGraph *simple.WeightedUndirectedGraph

	// cachedSP saves shortest-path trees, keyed by the id of the tree's root
	cachedSP map[int]path.Shortest
}

// PathParams summarizes the route from one node to another
type PathParams struct {
	Hops      []string // node names, source first
	Latency   float64  // sum of the link latencies, seconds
	Bandwidth float64  // smallest link bandwidth on the route, bits per second
}

// BuildTopology creates the graph described by lds.  Links are weighted by
// latency, so routes minimize propagation delay
func BuildTopology(lds []LinkDesc) (*Topology, error) {
	topo := &Topology{
		idByName:  make(map[string]int),
		nameByID:  make(map[int]string),
		links:     make(map[linkKey]edgeParams),
		connGraph: simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		cachedSP:  make(map[int]path.Shortest),
	}

	for _, ld := range lds {
		if ld.A == ld.B {
			return nil, fmt.Errorf("link %s-%s connects a node to itself", ld.A, ld.B)
		}
		bndwdth, err := ParseDataRate(ld.Bandwidth)
		if err != nil {
			return nil, fmt.Errorf("link %s-%s: %w", ld.A, ld.B, err)
		}
		if ld.Latency < 0.0 {
			return nil, fmt.Errorf("link %s-%s: negative latency %g", ld.A, ld.B, ld.Latency)
		}
		aID := topo.nodeID(ld.A)
		bID := topo.nodeID(ld.B)
		key := makeLinkKey(aID, bID)
		if _, present := topo.links[key]; present {
			return nil, fmt.Errorf("link %s-%s described twice", ld.A, ld.B)
		}
		topo.links[key] = edgeParams{bndwdth: bndwdth, latency: ld.Latency}

		weightedEdge := simple.WeightedEdge{F: simple.Node(aID), T: simple.Node(bID), W: ld.Latency}
		topo.connGraph.SetWeightedEdge(weightedEdge)
	}
	return topo, nil
}

// nodeID returns the graph id of the named node, adding the node if it is new
func (topo *Topology) nodeID(name string) int {
	id, present := topo.idByName[name]
	if present {
		return id
	}
	id = len(topo.idByName)
	topo.idByName[name] = id
	topo.nameByID[id] = name
	topo.connGraph.AddNode(simple.Node(id))
	return id
}

// getSPTree returns the shortest path tree rooted at from, computing and caching it if needed
func (topo *Topology) getSPTree(from int) path.Shortest {
	spTree, present := topo.cachedSP[from]
	if present {
		return spTree
	}
	spTree = path.DijkstraFrom(simple.Node(from), topo.connGraph)
	topo.cachedSP[from] = spTree
	return spTree
}

// Route returns the minimum latency path from src to dst
func (topo *Topology) Route(src, dst string) (PathParams, error) {
	srcID, present := topo.idByName[src]
	if !present {
		return PathParams{}, fmt.Errorf("%s not a node of the topology", src)
	}
	dstID, present := topo.idByName[dst]
	if !present {
		return PathParams{}, fmt.Errorf("%s not a node of the topology", dst)
	}
	if srcID == dstID {
		return PathParams{}, fmt.Errorf("route from %s to itself", src)
	}

	var nodeSeq []graph.Node
	nodeSeq, _ = topo.getSPTree(srcID).To(int64(dstID))
	if len(nodeSeq) == 0 {
		return PathParams{}, fmt.Errorf("no route from %s to %s", src, dst)
	}

	pp := PathParams{Bandwidth: math.Inf(1)}
	for idx, node := range nodeSeq {
		pp.Hops = append(pp.Hops, topo.nameByID[int(node.ID())])
		if idx == 0 {
			continue
		}
		lp := topo.links[makeLinkKey(int(nodeSeq[idx-1].ID()), int(node.ID()))]
		pp.Latency += lp.latency
		pp.Bandwidth = math.Min(pp.Bandwidth, lp.bndwdth)
	}
	return pp, nil
}
