// Package registry holds the three keyed search trees that index channels:
// live, trash (deleted-pending-reclaim) and unrecoverable (deleted on
// explicit admin request). All three are ordered by a 32-bit hash of the
// channel id, with byte-wise id comparison resolving collisions.
package registry

import (
	"hash/fnv"

	"github.com/google/btree"

	"github.com/streamhub/streamhub/internal/core/domain"
)

const treeDegree = 32

type item struct {
	key     uint32
	id      string
	channel *domain.Channel
}

func itemLess(a, b item) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	return a.id < b.id
}

// HashID returns the 32-bit key used to order a channel in every tree.
func HashID(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32()
}

// Registry owns the live/trash/unrecoverable trees. All methods assume the
// caller already holds the owning arena's mutex; Registry itself does no
// locking so it composes cleanly under a single coarse lock.
type Registry struct {
	live          *btree.BTreeG[item]
	trash         *btree.BTreeG[item]
	unrecoverable *btree.BTreeG[item]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		live:          btree.NewG(treeDegree, itemLess),
		trash:         btree.NewG(treeDegree, itemLess),
		unrecoverable: btree.NewG(treeDegree, itemLess),
	}
}

func probe(id string) item {
	return item{key: HashID(id), id: id}
}

// Find looks up a channel by id in the live tree only.
func (r *Registry) Find(id string) (*domain.Channel, bool) {
	it, ok := r.live.Get(probe(id))
	if !ok {
		return nil, false
	}
	return it.channel, true
}

// Insert adds ch to the live tree. The caller has already verified ch.ID
// is not already present.
func (r *Registry) Insert(ch *domain.Channel) {
	ch.Location = domain.LocationLive
	r.live.ReplaceOrInsert(item{key: ch.Key, id: ch.ID, channel: ch})
}

// MoveToTrash detaches ch from the live tree and inserts it into the trash
// tree, used by collect-empty-and-expired.
func (r *Registry) MoveToTrash(ch *domain.Channel) {
	r.live.Delete(item{key: ch.Key, id: ch.ID})
	ch.Location = domain.LocationTrash
	r.trash.ReplaceOrInsert(item{key: ch.Key, id: ch.ID, channel: ch})
}

// MoveToUnrecoverable detaches ch from the live tree and inserts it into
// the unrecoverable tree, used by explicit delete().
func (r *Registry) MoveToUnrecoverable(ch *domain.Channel) {
	r.live.Delete(item{key: ch.Key, id: ch.ID})
	ch.Location = domain.LocationUnrecoverable
	r.unrecoverable.ReplaceOrInsert(item{key: ch.Key, id: ch.ID, channel: ch})
}

// FreeFromTrash removes ch from the trash tree once the reclaimer has
// freed it.
func (r *Registry) FreeFromTrash(ch *domain.Channel) {
	r.trash.Delete(item{key: ch.Key, id: ch.ID})
}

// FreeFromUnrecoverable removes ch from the unrecoverable tree once every
// worker has evicted its local subscribers and the last one has freed it.
func (r *Registry) FreeFromUnrecoverable(ch *domain.Channel) {
	r.unrecoverable.Delete(item{key: ch.Key, id: ch.ID})
}

// EachLive visits every channel in the live tree, in key order. The
// visitor's return value controls whether iteration continues, mirroring
// btree's Ascend semantics and keeping cleanup traversal iterative rather
// than recursive.
func (r *Registry) EachLive(visit func(*domain.Channel) bool) {
	r.live.Ascend(func(it item) bool {
		return visit(it.channel)
	})
}

// EachTrash visits every channel in the trash tree, in key order.
func (r *Registry) EachTrash(visit func(*domain.Channel) bool) {
	r.trash.Ascend(func(it item) bool {
		return visit(it.channel)
	})
}

// EachUnrecoverable visits every channel in the unrecoverable tree.
func (r *Registry) EachUnrecoverable(visit func(*domain.Channel) bool) {
	r.unrecoverable.Ascend(func(it item) bool {
		return visit(it.channel)
	})
}

// Counts reports the size of each tree, for the query admin-plane op.
func (r *Registry) Counts() (live, trash, unrecoverable int) {
	return r.live.Len(), r.trash.Len(), r.unrecoverable.Len()
}
