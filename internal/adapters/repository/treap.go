package repository

// Treap-ordered event index for one match.
//
// Ordering: period ASC, seconds-in-period ASC, insertion sequence ASC. In-order
// traversal therefore yields events by match clock with ties broken by
// arrival, which is exactly the order window queries must return.

type clockKey struct {
	period int
	second int
	seq    uint64
}

func (a clockKey) less(b clockKey) bool {
	if a.period != b.period {
		return a.period < b.period
	}
	if a.second != b.second {
		return a.second < b.second
	}
	return a.seq < b.seq
}

type node struct {
	key   clockKey
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// seqPriority scrambles the insertion sequence (splitmix64) so that the heap
// priorities look random and the tree stays balanced in expectation even
// though events mostly arrive in clock order.
func seqPriority(seq uint64) uint64 {
	z := seq + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n *node, key clockKey) *node {
	if n == nil {
		return &node{key: key, prio: seqPriority(key.seq), size: 1}
	}
	if key.less(n.key) {
		n.left = insert(n.left, key)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, key)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// collectRange appends, in order, the sequences of keys within [lo, hi].
func collectRange(n *node, lo, hi clockKey, out *[]uint64) {
	if n == nil {
		return
	}
	if lo.less(n.key) {
		collectRange(n.left, lo, hi, out)
	}
	if !n.key.less(lo) && !hi.less(n.key) {
		*out = append(*out, n.key.seq)
	}
	if n.key.less(hi) {
		collectRange(n.right, lo, hi, out)
	}
}

// eventIndex orders the events of one match by clock.
type eventIndex struct {
	root *node
}

func (ix *eventIndex) add(key clockKey) {
	ix.root = insert(ix.root, key)
}

func (ix *eventIndex) len() int {
	return nsize(ix.root)
}

// window returns insertion sequences of events in period with seconds in
// [startSec, endSec], in clock order.
func (ix *eventIndex) window(period, startSec, endSec int) []uint64 {
	var out []uint64
	lo := clockKey{period: period, second: startSec, seq: 0}
	hi := clockKey{period: period, second: endSec, seq: ^uint64(0)}
	collectRange(ix.root, lo, hi, &out)
	return out
}
