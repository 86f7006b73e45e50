// This file implements LRU eviction.

package eviction

import "container/list"

// lru keeps keys in a list ordered from most to least recently used.
// The map gives O(1) access to a key's list element.
type lru struct {
	order *list.List
	elems map[string]*list.Element
}

func newLRU() *lru {
	return &lru{order: list.New(), elems: make(map[string]*list.Element)}
}

// OnGet marks k as most recently used.
func (l *lru) OnGet(k string) {
	if e, ok := l.elems[k]; ok {
		l.order.MoveToFront(e)
	}
}

// OnPut tracks k as most recently used.
func (l *lru) OnPut(k string) {
	if e, ok := l.elems[k]; ok {
		l.order.MoveToFront(e)
		return
	}
	l.elems[k] = l.order.PushFront(k)
}

// Evict removes the least recently used key, which always sits at the back.
func (l *lru) Evict() string {
	e := l.order.Back()
	if e == nil {
		return ""
	}
	k := l.order.Remove(e).(string)
	delete(l.elems, k)
	return k
}

func (l *lru) Remove(k string) {
	if e, ok := l.elems[k]; ok {
		l.order.Remove(e)
		delete(l.elems, k)
	}
}

func (l *lru) Len() int { return len(l.elems) }
