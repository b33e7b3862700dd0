package policytree

import (
	"fmt"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// Searcher finds reward-maximizing policy trees of bounded depth.
//
// A Searcher holds configuration only. It is safe for concurrent use, and
// every call to Search owns its working state.
type Searcher struct {
	depth       int      // maximum tree depth
	splitStep   int      // evaluate every splitStep-th distinct value
	minNodeSize int      // minimum rows per child
	searchDepth int      // lookahead for hybrid search (0 = exhaustive)
	workers     int      // goroutines evaluating root features
	labels      []string // optional action names
	logger      zerolog.Logger
}

// Option defines a functional option for configuring a Searcher
type Option func(*Searcher)

// WithSplitStep sets the approximation step. 1 considers every distinct
// value as a threshold; k > 1 considers every k-th one.
func WithSplitStep(step int) Option {
	return func(s *Searcher) {
		s.splitStep = step
	}
}

// WithMinNodeSize sets the smallest number of rows a split may leave on
// either side.
func WithMinNodeSize(size int) Option {
	return func(s *Searcher) {
		s.minNodeSize = size
	}
}

// WithSearchDepth enables hybrid search: each split is chosen by an
// exhaustive search looking only depth levels ahead. A value of 0, or one not
// below the tree depth, keeps the search exhaustive.
func WithSearchDepth(depth int) Option {
	return func(s *Searcher) {
		s.searchDepth = depth
	}
}

// WithWorkers sets how many goroutines evaluate candidate features at the
// root. 0 uses GOMAXPROCS. Results do not depend on the worker count.
func WithWorkers(workers int) Option {
	return func(s *Searcher) {
		s.workers = workers
	}
}

// WithActionLabels names the actions; leaves of the result carry the label
// of their action. The number of labels must match the reward columns.
func WithActionLabels(labels ...string) Option {
	return func(s *Searcher) {
		s.labels = slices.Clone(labels)
	}
}

// WithLogger sets the logger used for search diagnostics. Searchers are
// silent unless one is given.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Searcher) {
		s.logger = logger
	}
}

// NewSearcher creates a Searcher for trees of at most depth levels.
func NewSearcher(depth int, options ...Option) (*Searcher, error) {
	s := &Searcher{
		depth:       depth,
		splitStep:   1,
		minNodeSize: 1,
		workers:     1,
		logger:      zerolog.Nop(),
	}

	for _, opt := range options {
		opt(s)
	}

	switch {
	case s.depth < 0:
		return nil, fmt.Errorf("%w: depth must be non-negative, got %d", ErrInvalidInput, s.depth)
	case s.splitStep < 1:
		return nil, fmt.Errorf("%w: split step must be positive, got %d", ErrInvalidInput, s.splitStep)
	case s.minNodeSize < 1:
		return nil, fmt.Errorf("%w: min node size must be positive, got %d", ErrInvalidInput, s.minNodeSize)
	case s.searchDepth < 0:
		return nil, fmt.Errorf("%w: search depth must be non-negative, got %d", ErrInvalidInput, s.searchDepth)
	case s.workers < 0:
		return nil, fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidInput, s.workers)
	}
	if s.workers == 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}

	return s, nil
}

// Search finds the policy tree of at most depth levels maximizing the total
// reward of Y under the assigned actions. X is n x p covariates, Y is n x d
// rewards with d >= 2. It is shorthand for NewSearcher followed by
// Searcher.Search.
func Search(X, Y mat.Matrix, depth, splitStep int) (*TreeResult, error) {
	s, err := NewSearcher(depth, WithSplitStep(splitStep))
	if err != nil {
		return nil, err
	}
	return s.Search(X, Y)
}

// Search runs the tree search. A nil X means there are no covariates, in which
// case the result is a single leaf.
func (s *Searcher) Search(X, Y mat.Matrix) (*TreeResult, error) {
	ds, err := newDataset(X, Y)
	if err != nil {
		return nil, err
	}
	if s.labels != nil && len(s.labels) != ds.d {
		return nil, fmt.Errorf("%w: %d action labels for %d actions", ErrInvalidInput, len(s.labels), ds.d)
	}
	return s.run(ds), nil
}

// SearchRows is Search for row-major slices. Rows of length zero describe a
// covariate matrix without columns.
func (s *Searcher) SearchRows(X, Y [][]float64) (*TreeResult, error) {
	xm, ym, err := fromRows(X, Y)
	if err != nil {
		return nil, err
	}
	return s.Search(xm, ym)
}

func (s *Searcher) run(ds *dataset) *TreeResult {
	start := time.Now()
	s.logger.Debug().
		Int("observations", ds.n).
		Int("features", ds.p).
		Int("actions", ds.d).
		Int("depth", s.depth).
		Int("split_step", s.splitStep).
		Int("search_depth", s.searchDepth).
		Msg("starting tree search")

	b := &builder{
		ds:          ds,
		splitStep:   s.splitStep,
		minNodeSize: s.minNodeSize,
		scratch:     newScratch(ds.n),
	}
	root := rootSubset(ds)

	var tree *node
	if s.searchDepth > 0 && s.searchDepth < s.depth {
		tree = b.hybrid(root, s.depth, s.searchDepth, s.workers)
	} else {
		tree = b.build(root, s.depth, s.workers)
	}

	res := &TreeResult{
		Nodes:       assemble(tree, s.labels),
		Reward:      tree.reward,
		Depth:       s.depth,
		NumFeatures: ds.p,
		NumActions:  ds.d,
		Evaluated:   b.evaluated.Load(),
	}

	if tree.isLeaf() && s.depth > 0 {
		s.logger.Debug().Int("action", tree.action).Msg("no split improves on a single action")
	}
	s.logger.Debug().
		Float64("reward", res.Reward).
		Int("nodes", len(res.Nodes)).
		Int64("splits_evaluated", res.Evaluated).
		Dur("elapsed", time.Since(start)).
		Msg("tree search finished")
	return res
}

// node is the nested tree produced by the builder. A node without children
// is a leaf.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node

	action  int
	reward  float64 // total reward of the subtree's policy on its rows
	samples int
}

func (n *node) isLeaf() bool {
	return n.left == nil
}

// builder is the working state of one search.
type builder struct {
	ds          *dataset
	splitStep   int
	minNodeSize int
	scratch     *scratch
	evaluated   atomic.Int64
}

// leaf returns the best single-action leaf for s.
func (b *builder) leaf(s *subset) *node {
	a, r := sumRewards(b.ds, s.rows).best()
	return &node{action: a, reward: r, samples: s.size()}
}

// build returns the optimal tree of at most depth levels over s. A split is
// kept only when it beats the best leaf; equal rewards keep the leaf.
func (b *builder) build(s *subset, depth, workers int) *node {
	leaf := b.leaf(s)
	if depth == 0 || b.ds.p == 0 || s.size() < 2*b.minNodeSize {
		return leaf
	}

	tol := driftBound(b.ds, s.rows)
	best := b.bestSplit(s, depth, workers, tol)
	if best == nil || !better(best.reward, leaf.reward, tol) {
		return leaf
	}
	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		left:      best.left,
		right:     best.right,
		reward:    best.reward,
		samples:   s.size(),
	}
}

// bestSplit evaluates every feature and returns the best candidate, or nil
// when no feature admits a split. Per-feature results are reduced in feature
// order, so the earliest feature wins ties whether or not workers run in
// parallel. Rewards within tol of each other tie.
func (b *builder) bestSplit(s *subset, depth, workers int, tol float64) *candidate {
	results := make([]*candidate, b.ds.p)
	evaluate := func(f int) {
		if depth == 1 {
			results[f] = b.scanLeaves(s, f, tol)
		} else {
			results[f] = b.scanSubtrees(s, f, depth, tol)
		}
	}

	if workers <= 1 || b.ds.p == 1 {
		for f := range results {
			evaluate(f)
		}
	} else {
		features := make(chan int, b.ds.p)
		for f := range results {
			features <- f
		}
		close(features)

		var wg sync.WaitGroup
		for i := 0; i < min(workers, b.ds.p); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for f := range features {
					evaluate(f)
				}
			}()
		}
		wg.Wait()
	}

	var best *candidate
	for _, c := range results {
		if c != nil && (best == nil || better(c.reward, best.reward, tol)) {
			best = c
		}
	}
	return best
}
