// This file implements FIFO eviction.

package eviction

import "container/list"

// fifo evicts in insertion order. Reads do not matter.
type fifo struct {
	queue *list.List
	elems map[string]*list.Element
}

func newFIFO() *fifo {
	return &fifo{queue: list.New(), elems: make(map[string]*list.Element)}
}

func (f *fifo) OnGet(string) {}

// OnPut appends k to the back of the queue. A re-inserted key goes to the back again.
func (f *fifo) OnPut(k string) {
	f.Remove(k)
	f.elems[k] = f.queue.PushBack(k)
}

// Evict removes the oldest key.
func (f *fifo) Evict() string {
	e := f.queue.Front()
	if e == nil {
		return ""
	}
	k := f.queue.Remove(e).(string)
	delete(f.elems, k)
	return k
}

func (f *fifo) Remove(k string) {
	if e, ok := f.elems[k]; ok {
		f.queue.Remove(e)
		delete(f.elems, k)
	}
}

func (f *fifo) Len() int { return len(f.elems) }
