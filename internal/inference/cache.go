package inference

import (
	"sync"

	"github.com/jward/pyrite/internal/nodes"
)

// cacheKey identifies one inference: a node (within its tree's shard) under
// a context signature.
type cacheKey struct {
	id  nodes.ID
	sig uint64
}

type entry struct {
	values []Value
	err    error
	diags  []error
}

// cache is the shared, write-once result store. It is sharded by tree
// serial so a rebuilt module's results can be dropped in one step.
type cache struct {
	shards sync.Map // uint64 → *sync.Map[cacheKey]*entry
}

func (c *cache) shard(serial uint64) *sync.Map {
	if s, ok := c.shards.Load(serial); ok {
		return s.(*sync.Map)
	}
	s, _ := c.shards.LoadOrStore(serial, &sync.Map{})
	return s.(*sync.Map)
}

func (c *cache) load(n *nodes.Node, key cacheKey) (*entry, bool) {
	s, ok := c.shards.Load(n.Tree().Serial())
	if !ok {
		return nil, false
	}
	e, ok := s.(*sync.Map).Load(key)
	if !ok {
		return nil, false
	}
	return e.(*entry), true
}

// store keeps the first entry written for key and returns the winner.
func (c *cache) store(n *nodes.Node, key cacheKey, e *entry) *entry {
	got, _ := c.shard(n.Tree().Serial()).LoadOrStore(key, e)
	return got.(*entry)
}

// drop forgets every result computed for nodes of the tree.
func (c *cache) drop(serial uint64) {
	c.shards.Delete(serial)
}

// reset forgets everything.
func (c *cache) reset() {
	c.shards.Range(func(k, _ any) bool {
		c.shards.Delete(k)
		return true
	})
}
