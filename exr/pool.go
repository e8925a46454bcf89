package exr

import (
	"sync"
	"sync/atomic"
)

// Buffer size classes, powers of two from 4KB to 4MB. Chunk buffers for
// common image widths and compression block heights land in the middle
// of this range.
var poolClasses = [...]int{
	4 << 10, 16 << 10, 64 << 10, 256 << 10, 1 << 20, 4 << 20,
}

// BufferPool recycles chunk-sized byte buffers across reads and writes.
// Buffers are filed by capacity into power-of-four size classes;
// requests larger than the largest class are allocated directly. An
// optional memory limit bounds the bytes outstanding at once.
type BufferPool struct {
	classes [len(poolClasses)]sync.Pool
	hits    atomic.Int64
	misses  atomic.Int64
	inUse   atomic.Int64
	limit   atomic.Int64
}

// PoolStats reports pool effectiveness counters.
type PoolStats struct {
	Hits   int64
	Misses int64
}

func classFor(n int) int {
	for i, size := range poolClasses {
		if n <= size {
			return i
		}
	}
	return -1
}

// SetMemoryLimit caps the bytes of pool-managed buffers outstanding at
// once. Zero means unlimited. Returns the previous limit.
func (p *BufferPool) SetMemoryLimit(limit int64) int64 {
	return p.limit.Swap(limit)
}

// MemoryLimit returns the current limit, zero meaning unlimited.
func (p *BufferPool) MemoryLimit() int64 { return p.limit.Load() }

// MemoryUsed returns the bytes of pool-managed buffers currently
// handed out by Get.
func (p *BufferPool) MemoryUsed() int64 { return p.inUse.Load() }

// Get returns a buffer with length n, or nil when the memory limit
// would be exceeded. Its contents are unspecified.
func (p *BufferPool) Get(n int) []byte {
	ci := classFor(n)
	if ci < 0 {
		if limit := p.limit.Load(); limit > 0 && p.inUse.Load()+int64(n) > limit {
			return nil
		}
		p.misses.Add(1)
		return make([]byte, n)
	}
	size := int64(poolClasses[ci])
	if limit := p.limit.Load(); limit > 0 && p.inUse.Load()+size > limit {
		return nil
	}
	p.inUse.Add(size)
	if v := p.classes[ci].Get(); v != nil {
		p.hits.Add(1)
		return v.(*poolBuf).b[:n]
	}
	p.misses.Add(1)
	return make([]byte, n, poolClasses[ci])
}

// Put files buf back into the pool. Callers must not use buf afterwards.
func (p *BufferPool) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	// File by capacity; only exact class capacities are kept, so a
	// recycled buffer can always be resliced to any request in its class.
	for i, size := range poolClasses {
		if cap(buf) == size {
			p.inUse.Add(int64(-size))
			p.classes[i].Put(&poolBuf{b: buf[:cap(buf)]})
			return
		}
	}
}

// Stats returns the hit and miss counters.
func (p *BufferPool) Stats() PoolStats {
	return PoolStats{Hits: p.hits.Load(), Misses: p.misses.Load()}
}

// poolBuf wraps a slice so sync.Pool stores a pointer-shaped value.
type poolBuf struct{ b []byte }

var chunkPool BufferPool

// getChunkBuf and putChunkBuf recycle raw chunk buffers. putChunkBuf is
// safe to call with a buffer that did not come from the pool; odd
// capacities are just dropped. Decoding must not fail on the pool
// limit, so getChunkBuf falls back to a plain allocation.
func getChunkBuf(n int) []byte {
	if b := chunkPool.Get(n); b != nil {
		return b
	}
	return make([]byte, n)
}

func putChunkBuf(buf []byte) { chunkPool.Put(buf) }

// SetChunkPoolMemoryLimit caps the package-wide chunk pool. Zero means
// unlimited. Returns the previous limit.
func SetChunkPoolMemoryLimit(limit int64) int64 {
	return chunkPool.SetMemoryLimit(limit)
}

// sameBacking reports whether a and b share a first element. Codecs may
// return their input unchanged, in which case the buffer must not be
// recycled while the other alias is live.
func sameBacking(a, b []byte) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

// ChunkPoolStats returns counters for the package-wide chunk buffer pool.
func ChunkPoolStats() PoolStats { return chunkPool.Stats() }
