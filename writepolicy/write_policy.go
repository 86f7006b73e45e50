package writepolicy

import (
	"context"
	"fmt"

	"github.com/apex/log"

	"github.com/krisalay/ops-engine/types"
)

/*
A write policy decides what happens to a freshly computed result once it is cached.
The engine itself persists nothing; hosts that want to keep results plug in a
types.Sink and pick how writes reach it:
- write-through: the sink is called before the optimization call returns
- write-back: writes are queued and a background worker drains them
*/

/*
WritePolicy is the contract that all write policies must follow.
The cache engine does not care which policy is used. It simply calls these methods.
*/
type WritePolicy interface {

	// OnWrite is called whenever a new result is stored in the cache.
	OnWrite(ctx context.Context, key string, value any)

	// Close flushes pending writes and stops background work.
	Close()
}

// Type names a write policy in configuration.
type Type string

const (
	None         Type = "none"
	WriteThrough Type = "write-through"
	WriteBack    Type = "write-back"
)

// ParseType validates a configured policy name. The empty string selects None.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case None, WriteThrough, WriteBack:
		return t, nil
	case "":
		return None, nil
	default:
		return "", fmt.Errorf("unknown write policy %q", s)
	}
}

// New builds the policy for t. A nil sink or None yields a nil policy, which the
// cache engine treats as "results stay in memory".
func New(t Type, sink types.Sink, buffer int, logger log.Interface) (WritePolicy, error) {
	t, err := ParseType(string(t))
	if err != nil {
		return nil, err
	}
	if t == None || sink == nil {
		return nil, nil
	}
	if t == WriteThrough {
		return NewWriteThroughPolicy(sink, logger), nil
	}
	return NewWriteBackPolicy(sink, buffer, logger), nil
}
