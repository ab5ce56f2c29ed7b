// Package writebuffer implements the default in-memory column store backing
// a writable Buffer for one (partition, kind). It backs every Buffer; no
// external "table list" collaborator can be injected (spec §1 OUT OF SCOPE).
//
// Grounded on the teacher's internal/memtable: the lock-free-read SkipList
// (skiplist.go, unchanged in shape) and the RocksDB-style memtable built on
// top of it. Rows here are keyed by (device, measurement, timestamp)
// instead of (userKey, seqNum) — see entry.go.
package writebuffer

import (
	"math/rand"
	"sync/atomic"
)

const (
	defaultMaxHeight       = 12
	defaultBranchingFactor = 4
)

// comparator compares two entries and returns negative/zero/positive for
// less/equal/greater, the same contract as the teacher's Comparator type.
type comparator func(a, b []byte) int

type skipNode struct {
	key  []byte
	next []*atomic.Pointer[skipNode]
}

func newSkipNode(key []byte, height int) *skipNode {
	node := &skipNode{key: key, next: make([]*atomic.Pointer[skipNode], height)}
	for i := range node.next {
		node.next[i] = &atomic.Pointer[skipNode]{}
	}
	return node
}

func (n *skipNode) getNext(level int) *skipNode     { return n.next[level].Load() }
func (n *skipNode) setNext(level int, nd *skipNode) { n.next[level].Store(nd) }

// skipList is a lock-free (for reads) skip list. Writes require external
// synchronization — the Buffer above it does this under its own mutex.
type skipList struct {
	head      *skipNode
	maxHeight int32
	compare   comparator
	rng       *rand.Rand

	kMaxHeight  int
	kBranching  int
	kScaledInvB uint32

	count int64
}

func newSkipList(cmp comparator) *skipList {
	return &skipList{
		head:        newSkipNode(nil, defaultMaxHeight),
		maxHeight:   1,
		compare:     cmp,
		rng:         rand.New(rand.NewSource(0xDEADBEEF)),
		kMaxHeight:  defaultMaxHeight,
		kBranching:  defaultBranchingFactor,
		kScaledInvB: uint32(0xFFFFFFFF) / uint32(defaultBranchingFactor),
	}
}

// insert adds a key to the skip list. REQUIRES external synchronization. A
// key equal to one already present is ignored; the first one is kept.
func (sl *skipList) insert(key []byte) {
	prev := make([]*skipNode, sl.kMaxHeight)
	x := sl.findGreaterOrEqual(key, prev)
	if x != nil && sl.compare(key, x.key) == 0 {
		return
	}

	height := sl.randomHeight()
	maxH := int(atomic.LoadInt32(&sl.maxHeight))
	if height > maxH {
		for i := maxH; i < height; i++ {
			prev[i] = sl.head
		}
		atomic.StoreInt32(&sl.maxHeight, int32(height))
	}

	node := newSkipNode(key, height)
	for i := range height {
		node.setNext(i, prev[i].getNext(i))
		prev[i].setNext(i, node)
	}
	atomic.AddInt64(&sl.count, 1)
}

func (sl *skipList) Count() int64 { return atomic.LoadInt64(&sl.count) }

func (sl *skipList) findGreaterOrEqual(key []byte, prev []*skipNode) *skipNode {
	x := sl.head
	level := int(atomic.LoadInt32(&sl.maxHeight)) - 1
	for {
		next := x.getNext(level)
		if next != nil && sl.compare(key, next.key) > 0 {
			x = next
		} else {
			if prev != nil {
				prev[level] = x
			}
			if level == 0 {
				return next
			}
			level--
		}
	}
}

func (sl *skipList) findLast() *skipNode {
	x := sl.head
	level := int(atomic.LoadInt32(&sl.maxHeight)) - 1
	for {
		next := x.getNext(level)
		if next != nil {
			x = next
		} else {
			if level == 0 {
				if x == sl.head {
					return nil
				}
				return x
			}
			level--
		}
	}
}

func (sl *skipList) randomHeight() int {
	height := 1
	for height < sl.kMaxHeight {
		if sl.rng.Uint32() < sl.kScaledInvB {
			height++
		} else {
			break
		}
	}
	return height
}

// iterator provides in-order iteration over the skip list.
type iterator struct {
	list *skipList
	node *skipNode
}

func (sl *skipList) newIterator() *iterator { return &iterator{list: sl} }

func (it *iterator) valid() bool  { return it.node != nil }
func (it *iterator) key() []byte  { return it.node.key }
func (it *iterator) next()        { it.node = it.node.getNext(0) }
func (it *iterator) seekToFirst() { it.node = it.list.head.getNext(0) }
func (it *iterator) seekToLast()  { it.node = it.list.findLast() }
