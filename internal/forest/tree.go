package forest

import (
	"cmp"
	"math/rand/v2"
	"slices"
)

type node struct {
	leaf      bool
	value     float64 // class-1 fraction of the training samples that reached this node
	feature   int
	threshold float64
	left      *node
	right     *node
}

func (n *node) predict(row []float64) float64 {
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

type sample struct {
	v float64
	y int
}

type split struct {
	feature   int
	threshold float64
	impurity  float64
	ok        bool
}

// treeBuilder grows one CART classification tree over a bootstrap sample.
type treeBuilder struct {
	x           [][]float64
	y           []int
	maxFeatures int
	minSplit    int
	maxDepth    int
	rng         *rand.Rand
	importance  []float64
	buf         []sample
}

func gini(pos, total int) float64 {
	if total == 0 {
		return 0
	}
	p := float64(pos) / float64(total)
	return 2 * p * (1 - p)
}

func (b *treeBuilder) build(idx []int, depth int) *node {
	pos := 0
	for _, i := range idx {
		pos += b.y[i]
	}
	n := len(idx)
	value := float64(pos) / float64(n)

	if pos == 0 || pos == n || n < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) {
		return &node{leaf: true, value: value}
	}

	best := b.bestSplit(idx)
	if !best.ok {
		return &node{leaf: true, value: value}
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][best.feature] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.importance[best.feature] += float64(n)*gini(pos, n) - best.impurity

	return &node{
		feature:   best.feature,
		threshold: best.threshold,
		value:     value,
		left:      b.build(left, depth+1),
		right:     b.build(right, depth+1),
	}
}

// bestSplit visits features in random order. It stops after maxFeatures
// candidates once a valid split exists, and keeps looking otherwise, so a node
// is only made a leaf when no feature can separate its samples.
func (b *treeBuilder) bestSplit(idx []int) split {
	nFeatures := len(b.x[0])
	order := b.rng.Perm(nFeatures)

	best := split{}
	for visited, f := range order {
		if visited >= b.maxFeatures && best.ok {
			break
		}
		if s := b.splitOn(idx, f); s.ok && (!best.ok || s.impurity < best.impurity) {
			best = s
		}
	}
	return best
}

// splitOn returns the lowest weighted Gini split of idx on feature f.
// Impurity is reported unnormalized (n_left*gini_left + n_right*gini_right).
func (b *treeBuilder) splitOn(idx []int, f int) split {
	buf := b.buf[:0]
	totalPos := 0
	for _, i := range idx {
		buf = append(buf, sample{v: b.x[i][f], y: b.y[i]})
		totalPos += b.y[i]
	}
	b.buf = buf

	slices.SortStableFunc(buf, func(a, c sample) int { return cmp.Compare(a.v, c.v) })

	n := len(buf)
	best := split{feature: f}
	leftPos := 0
	for k := 1; k < n; k++ {
		leftPos += buf[k-1].y
		if buf[k-1].v >= buf[k].v {
			continue
		}
		nl, nr := k, n-k
		impurity := float64(nl)*gini(leftPos, nl) + float64(nr)*gini(totalPos-leftPos, nr)
		if !best.ok || impurity < best.impurity {
			threshold := buf[k-1].v + (buf[k].v-buf[k-1].v)/2
			if threshold >= buf[k].v {
				threshold = buf[k-1].v
			}
			best = split{feature: f, threshold: threshold, impurity: impurity, ok: true}
		}
	}
	return best
}
