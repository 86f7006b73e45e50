package eviction

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowestHitsEvictsFewestReads(t *testing.T) {
	p := NewEvictionPolicy(LowestHits)

	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")

	p.OnGet("a")
	p.OnGet("a")
	p.OnGet("c")

	assert.Equal(t, "b", p.Evict())
	assert.Equal(t, "c", p.Evict())
	assert.Equal(t, "a", p.Evict())
	assert.Equal(t, "", p.Evict())
}

func TestLowestHitsTieBreaksByInsertion(t *testing.T) {
	p := NewEvictionPolicy(LowestHits)

	for i := 0; i < 5; i++ {
		p.OnPut(fmt.Sprintf("k%d", i))
	}
	// every key read once, so only insertion order separates them
	for i := 4; i >= 0; i-- {
		p.OnGet(fmt.Sprintf("k%d", i))
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, fmt.Sprintf("k%d", i), p.Evict())
	}
}

func TestLowestHitsReinsertResetsCount(t *testing.T) {
	p := NewEvictionPolicy(LowestHits)

	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnGet("b")
	p.OnPut("a") // overwrite: back to zero hits, newest

	assert.Equal(t, 2, p.Len())
	assert.Equal(t, "a", p.Evict())
}

func TestRemoveUntracked(t *testing.T) {
	for _, typ := range []PolicyType{LowestHits, LRU, FIFO} {
		t.Run(string(typ), func(t *testing.T) {
			p := NewEvictionPolicy(typ)
			p.OnPut("a")
			p.Remove("missing")
			p.Remove("a")
			p.Remove("a")
			assert.Equal(t, 0, p.Len())
			assert.Equal(t, "", p.Evict())
		})
	}
}

func TestLRUOrder(t *testing.T) {
	p := NewEvictionPolicy(LRU)

	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")
	p.OnGet("a")

	assert.Equal(t, "b", p.Evict())
	assert.Equal(t, "c", p.Evict())
	assert.Equal(t, "a", p.Evict())
}

func TestFIFOIgnoresReads(t *testing.T) {
	p := NewEvictionPolicy(FIFO)

	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnGet("a")

	assert.Equal(t, "a", p.Evict())
	assert.Equal(t, "b", p.Evict())
}

func TestParsePolicyType(t *testing.T) {
	got, err := ParsePolicyType("")
	require.NoError(t, err)
	assert.Equal(t, LowestHits, got)

	got, err = ParsePolicyType("lru")
	require.NoError(t, err)
	assert.Equal(t, LRU, got)

	_, err = ParsePolicyType("random")
	assert.Error(t, err)
}
