package policytree

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Node is one node of a flattened policy tree. Split nodes send rows with
// a Feature value not above Threshold to Left and the rest to Right; leaves
// assign Action.
type Node struct {
	ID     int
	Parent int // -1 for the root
	Depth  int

	Feature   int // -1 on leaves
	Threshold float64
	Left      int // -1 on leaves
	Right     int // -1 on leaves

	Action      int // -1 on split nodes
	ActionLabel string

	Reward  float64 // total reward of the node's policy on the rows it covers
	Samples int     // training rows covered
}

// IsLeaf reports whether the node assigns an action.
func (n Node) IsLeaf() bool {
	return n.Left < 0
}

// TreeResult is the outcome of a search. Nodes are in pre-order (root, left
// subtree, right subtree) and a node's ID is its index.
type TreeResult struct {
	Nodes       []Node
	Reward      float64 // total reward achieved on the training rows
	Depth       int     // requested maximum depth
	NumFeatures int
	NumActions  int
	Evaluated   int64 // candidate splits scored
}

// Root returns the root node.
func (t *TreeResult) Root() Node {
	return t.Nodes[0]
}

// Leaves returns the leaves from left to right.
func (t *TreeResult) Leaves() []Node {
	var leaves []Node
	for _, n := range t.Nodes {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
	}
	return leaves
}

// MaxDepth returns the depth of the deepest leaf; 0 for a root-only tree.
func (t *TreeResult) MaxDepth() int {
	depth := 0
	for _, n := range t.Nodes {
		depth = max(depth, n.Depth)
	}
	return depth
}

// LeafIDs returns, for each row of X, the ID of the leaf it falls in.
// A nil X carries no row count, so trees built without features are queried
// through PredictRows with zero-width rows.
func (t *TreeResult) LeafIDs(X mat.Matrix) ([]int, error) {
	if X == nil {
		return nil, fmt.Errorf("%w: covariate matrix is nil; use PredictRows with empty rows for a tree without features",
			ErrInvalidInput)
	}
	n, p := X.Dims()
	if p != t.NumFeatures {
		return nil, fmt.Errorf("%w: covariate matrix has %d columns, tree was built on %d",
			ErrInvalidInput, p, t.NumFeatures)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			if v := X.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite covariate at (%d,%d)", ErrInvalidInput, i, j)
			}
		}
	}

	ids := make([]int, n)
	for i := range ids {
		id := 0
		for !t.Nodes[id].IsLeaf() {
			nd := t.Nodes[id]
			if X.At(i, nd.Feature) <= nd.Threshold {
				id = nd.Left
			} else {
				id = nd.Right
			}
		}
		ids[i] = id
	}
	return ids, nil
}

// Predict returns the action the tree assigns to each row of X.
func (t *TreeResult) Predict(X mat.Matrix) ([]int, error) {
	ids, err := t.LeafIDs(X)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		ids[i] = t.Nodes[id].Action
	}
	return ids, nil
}

// PredictRows is Predict for row-major slices. Rows may be empty when the
// tree has no features.
func (t *TreeResult) PredictRows(X [][]float64) ([]int, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: no rows to predict", ErrInvalidInput)
	}
	if err := checkRectangular("covariate", X); err != nil {
		return nil, err
	}
	return t.Predict(rowsMatrix(X))
}

// assemble flattens the nested tree in pre-order.
func assemble(root *node, labels []string) []Node {
	var nodes []Node
	var walk func(n *node, parent, depth int) int
	walk = func(n *node, parent, depth int) int {
		id := len(nodes)
		nodes = append(nodes, Node{
			ID:      id,
			Parent:  parent,
			Depth:   depth,
			Feature: -1,
			Left:    -1,
			Right:   -1,
			Action:  -1,
			Reward:  n.reward,
			Samples: n.samples,
		})

		switch {
		case n.left == nil && n.right == nil:
			nodes[id].Action = n.action
			if labels != nil {
				nodes[id].ActionLabel = labels[n.action]
			}
		case n.left != nil && n.right != nil:
			nodes[id].Feature = n.feature
			nodes[id].Threshold = n.threshold
			left := walk(n.left, id, depth+1)
			right := walk(n.right, id, depth+1)
			nodes[id].Left, nodes[id].Right = left, right
		default:
			panic("policytree: split node with a single child")
		}
		return id
	}
	walk(root, -1, 0)
	return nodes
}
