package eviction

import "fmt"

/*
This file defines how a shard decides what to remove when it runs out of space.
*/

/*
Policy is the interface that all eviction strategies must follow.

A policy only tracks keys; the shard owns the entries. Every method is called with the
shard mutex held, so implementations do not lock.
*/
type Policy interface {

	// OnGet is called after a live read of k.
	OnGet(k string)

	// OnPut is called when k is inserted. Re-inserting a tracked key restarts its
	// bookkeeping as if it were new.
	OnPut(k string)

	// Remove drops k from tracking. Unknown keys are ignored.
	Remove(k string)

	// Evict picks the victim, stops tracking it and returns it.
	// It returns "" when nothing is tracked.
	Evict() string

	// Len is the number of tracked keys.
	Len() int
}

// PolicyType is a simple identifier for supported eviction strategies.
type PolicyType string

const (
	// LowestHits evicts the key with the fewest reads, oldest insertion first on ties.
	LowestHits PolicyType = "lowest-hits"

	// LRU (Least Recently Used) evicts the key that has gone unread the longest.
	LRU PolicyType = "lru"

	// FIFO (First In First Out) evicts the oldest inserted key, regardless of access.
	FIFO PolicyType = "fifo"
)

// ParsePolicyType validates a configured policy name.
func ParsePolicyType(s string) (PolicyType, error) {
	switch t := PolicyType(s); t {
	case LowestHits, LRU, FIFO:
		return t, nil
	case "":
		return LowestHits, nil
	default:
		return "", fmt.Errorf("unknown eviction policy %q", s)
	}
}

// NewEvictionPolicy is a small factory function.
// Given a PolicyType, it creates the correct eviction policy.
func NewEvictionPolicy(t PolicyType) Policy {
	switch t {
	case LowestHits, "":
		return newLowestHits()
	case LRU:
		return newLRU()
	case FIFO:
		return newFIFO()
	default:
		panic("unknown eviction policy")
	}
}
