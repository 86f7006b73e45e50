// This file implements lowest-hit-count eviction.

package eviction

import "container/heap"

// hitNode is one tracked key. index is its position in the heap.
type hitNode struct {
	key   string
	hits  uint64
	seq   uint64
	index int
}

// hitHeap orders nodes by hits, then by insertion sequence.
type hitHeap []*hitNode

func (h hitHeap) Len() int { return len(h) }

func (h hitHeap) Less(i, j int) bool {
	if h[i].hits != h[j].hits {
		return h[i].hits < h[j].hits
	}
	return h[i].seq < h[j].seq
}

func (h hitHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *hitHeap) Push(x any) {
	n := x.(*hitNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *hitHeap) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	n.index = -1
	*h = old[:len(old)-1]
	return n
}

/*
lowestHits mirrors each entry's hit count in a min-heap so the victim is always at
the root. Reads and inserts cost O(log n) instead of a scan over the whole shard, and
ties resolve by insertion order rather than map iteration order.
*/
type lowestHits struct {
	nodes map[string]*hitNode
	heap  hitHeap
	seq   uint64
}

func newLowestHits() *lowestHits {
	return &lowestHits{nodes: make(map[string]*hitNode)}
}

func (l *lowestHits) OnGet(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}
	n.hits++
	heap.Fix(&l.heap, n.index)
}

func (l *lowestHits) OnPut(k string) {
	l.Remove(k)
	l.seq++
	n := &hitNode{key: k, seq: l.seq}
	l.nodes[k] = n
	heap.Push(&l.heap, n)
}

func (l *lowestHits) Remove(k string) {
	n, ok := l.nodes[k]
	if !ok {
		return
	}
	heap.Remove(&l.heap, n.index)
	delete(l.nodes, k)
}

func (l *lowestHits) Evict() string {
	if l.heap.Len() == 0 {
		return ""
	}
	n := heap.Pop(&l.heap).(*hitNode)
	delete(l.nodes, n.key)
	return n.key
}

func (l *lowestHits) Len() int { return len(l.nodes) }
