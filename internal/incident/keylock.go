package incident

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyLocks serializes aggregate mutation per incident key. Keys hash onto a
// fixed set of shards, so unrelated keys almost always proceed in parallel
// while two writers for the same key never interleave.
type keyLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *keyLocks) lock(k Key) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k.DedupeKey))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Namespace))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Service))

	m := &l.shards[h.Sum32()%lockShards]
	m.Lock()
	return m.Unlock
}
