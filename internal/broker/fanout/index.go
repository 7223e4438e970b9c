package fanout

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/streamhub/streamhub/internal/core/domain"
)

// Index is a lock-free mirror of the registry's live tree, keyed by
// channel id. find(id) is specified as a read-only operation (spec.md
// §4.1); serving it from an xsync.Map lets concurrent lookups proceed
// without ever taking the arena mutex, while every structural change
// (insert/move/delete) still updates both the tree and this index
// together under the lock.
type Index struct {
	live *xsync.Map[string, *domain.Channel]
}

// NewIndex creates an empty lock-free index.
func NewIndex() *Index {
	return &Index{live: xsync.NewMap[string, *domain.Channel]()}
}

// Find returns the live channel for id, if any, without locking.
func (idx *Index) Find(id string) (*domain.Channel, bool) {
	return idx.live.Load(id)
}

// Put mirrors a newly-live channel into the index. Called under the arena
// mutex.
func (idx *Index) Put(ch *domain.Channel) {
	idx.live.Store(ch.ID, ch)
}

// Remove drops a channel from the index once it leaves the live tree.
// Called under the arena mutex.
func (idx *Index) Remove(ch *domain.Channel) {
	idx.live.Delete(ch.ID)
}

// Len reports the number of channels currently indexed as live.
func (idx *Index) Len() int {
	return idx.live.Size()
}
